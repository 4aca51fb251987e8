package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ktao/dmhub/directory"
)

// Claims is the token payload: the user id plus standard expiry claims.
type Claims struct {
	UserID int32 `json:"userId"`
	jwt.RegisteredClaims
}

// JWTClient verifies HS256 bearer tokens and resolves the claimed uid
// against the user directory. The token is taken from the
// `Authorization: Bearer` header, falling back to the `token` query
// parameter for websocket clients that cannot set headers.
type JWTClient struct {
	secret []byte
	dir    directory.Directory
}

func NewJWTClient(secret []byte, dir directory.Directory) *JWTClient {
	return &JWTClient{secret: secret, dir: dir}
}

func (c *JWTClient) Auth(r *http.Request) (int32, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return 0, ErrNoCredential
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: missing userId claim", ErrInvalidCredential)
	}

	if _, err := c.dir.Lookup(r.Context(), claims.UserID); err != nil {
		if err == directory.ErrNotFound {
			return 0, ErrUnknownIdentity
		}
		return 0, err
	}

	return claims.UserID, nil
}

// Issue mints a token for uid, valid for ttl. Account signup/login is
// owned by another service; this is for tests and dev tooling.
func (c *JWTClient) Issue(uid int32, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
