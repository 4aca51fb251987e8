package auth

import (
	"errors"
	"net/http"
)

// Authentication failure causes, checked with errors.Is by callers that
// map them to transport-level responses.
var (
	// ErrNoCredential: the request carried no token at all.
	ErrNoCredential = errors.New("auth: no credential")
	// ErrInvalidCredential: signature or expiry check failed.
	ErrInvalidCredential = errors.New("auth: invalid credential")
	// ErrUnknownIdentity: the token verified but the claimed user no
	// longer exists in the directory.
	ErrUnknownIdentity = errors.New("auth: unknown identity")
)

type Client interface {
	// Auth authenticates the request, returning the bound uid.
	Auth(r *http.Request) (int32, error)
}
