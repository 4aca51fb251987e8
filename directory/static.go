package directory

import "context"

// StaticDirectory serves a fixed user set. Used by tests and
// `--mem-store` runs.
type StaticDirectory struct {
	Users map[int32]*User
}

func NewStaticDirectory(users ...*User) *StaticDirectory {
	d := &StaticDirectory{Users: make(map[int32]*User)}
	for _, u := range users {
		d.Users[u.ID] = u
	}
	return d
}

func (d *StaticDirectory) Lookup(ctx context.Context, uid int32) (*User, error) {
	if u, ok := d.Users[uid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}
