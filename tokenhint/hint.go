// Package tokenhint reads session token claims without checking the
// signature. Results are display hints only: a client can forge every
// field, so nothing here may be used to grant access.
package tokenhint

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const TextCodeUnreadable = "TOKEN_HINT_UNREADABLE"

// Hint is the unverified view of a token
type Hint struct {
	SubjectID string
	Role      string
	ExpiresAt time.Time
}

type hintClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Peek decodes raw without verifying it
func Peek(raw string) (Hint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Hint{}, unreadable("token is empty", nil)
	}

	claims := &hintClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Hint{}, unreadable("token is not a readable JWT", err)
	}

	hint := Hint{
		SubjectID: claims.Subject,
		Role:      claims.Role,
	}
	if claims.ExpiresAt != nil {
		hint.ExpiresAt = claims.ExpiresAt.Time
	}

	return hint, nil
}

// ProbablyExpired is true when exp is before now. Tokens that cannot be
// read, or carry no exp, count as expired.
func ProbablyExpired(raw string, now time.Time) bool {
	hint, err := Peek(raw)
	if err != nil || hint.ExpiresAt.IsZero() {
		return true
	}
	return now.After(hint.ExpiresAt)
}

func unreadable(msg string, src error) *goerrors.Error {
	var err *goerrors.Error
	if src == nil {
		err = goerrors.New(msg, goerrors.CategoryBadInput)
	} else {
		err = goerrors.Wrap(src, goerrors.CategoryBadInput, msg)
	}
	return err.WithCode(goerrors.CodeBadRequest).WithTextCode(TextCodeUnreadable)
}
