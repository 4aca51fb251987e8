// Package directory resolves user ids to display data. The user table
// itself is owned by the account service; this process only reads it.
package directory

import (
	"context"
	"errors"
)

// User is the public profile of an identity.
type User struct {
	ID     int32  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ErrNotFound means the id has no directory record. Callers on the
// query path degrade to placeholder display data instead of failing.
var ErrNotFound = errors.New("directory: user not found")

type Directory interface {
	Lookup(ctx context.Context, uid int32) (*User, error)
}
