package directory

import (
	"context"
	"database/sql"

	"github.com/golang/glog"
)

const lookupSQL = "SELECT user_id, name, COALESCE(profile_picture, '') FROM users WHERE user_id=?"

type mysqlDirectory struct {
	db *sql.DB
}

func NewMysqlDirectory(db *sql.DB) Directory {
	return &mysqlDirectory{db: db}
}

func (d *mysqlDirectory) Lookup(ctx context.Context, uid int32) (*User, error) {
	var u User
	row := d.db.QueryRowContext(ctx, lookupSQL, uid)
	if err := row.Scan(&u.ID, &u.Name, &u.Avatar); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		glog.Errorf("directory lookup scan err: %v", err)
		return nil, err
	}
	return &u, nil
}
