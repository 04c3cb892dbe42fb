package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the signature checked out but the window has
	// passed. Callers surface this differently from ErrTokenInvalid since
	// the underlying file may still exist and a fresh link can be issued
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// CLITokenLifetime is how long a CLI-issued identity token stays valid.
const CLITokenLifetime = 30 * 24 * time.Hour

// Codec signs and verifies the two bearer token kinds the service hands
// out: long-lived CLI identity tokens and short-lived file share tokens.
// Same signing mechanism, different claim shapes. There is no revocation
// list, expiry is the only invalidation mechanism.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

type cliClaims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	Type  string   `json:"type"`
	jwt.RegisteredClaims
}

type shareClaims struct {
	FileID string `json:"fileId"`
	jwt.RegisteredClaims
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
	}

	return c.secret, nil
}

// SignCLI mints a 30-day identity token for the CLI.
func (c *Codec) SignCLI(id Identity) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cliClaims{
		Email: id.Email,
		Name:  id.Name,
		Roles: id.Roles,
		Type:  "cli",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CLITokenLifetime)),
		},
	})

	return token.SignedString(c.secret)
}

// VerifyCLI checks the signature and that the token is of the cli kind.
// Any failure collapses into ErrTokenInvalid, a CLI just logs in again.
func (c *Codec) VerifyCLI(raw string) (*Identity, error) {
	var claims cliClaims

	token, err := jwt.ParseWithClaims(raw, &claims, c.keyFunc)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Type != "cli" {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
	}, nil
}

// SignShare mints a download capability token for a single file over the
// given window.
func (c *Codec) SignShare(fileID string, lifetime time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, shareClaims{
		FileID: fileID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	})

	return token.SignedString(c.secret)
}

// VerifyShare returns the referenced file id and the link expiry.
// ErrTokenExpired is kept distinct from ErrTokenInvalid.
func (c *Codec) VerifyShare(raw string) (string, time.Time, error) {
	var claims shareClaims

	token, err := jwt.ParseWithClaims(raw, &claims, c.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, ErrTokenExpired
		}

		return "", time.Time{}, ErrTokenInvalid
	}

	if !token.Valid || claims.FileID == "" {
		return "", time.Time{}, ErrTokenInvalid
	}

	return claims.FileID, claims.ExpiresAt.Time, nil
}
