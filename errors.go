package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoToken               = "NO_TOKEN"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeInvalidSignature      = "INVALID_SIGNATURE"
	TextCodeSessionRevoked        = "SESSION_REVOKED"
	TextCodeMalformedCredential   = "MALFORMED_CREDENTIAL"
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeVerificationNotFound  = "VERIFICATION_NOT_FOUND"
	TextCodeVerificationExpired   = "VERIFICATION_EXPIRED"
	TextCodeVerificationDone      = "VERIFICATION_ALREADY_DONE"
	TextCodeVerificationMismatch  = "VERIFICATION_EMAIL_MISMATCH"
	TextCodeDatastoreUnavailable  = "DATASTORE_UNAVAILABLE"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeChildNotFound         = "CHILD_NOT_FOUND"
	TextCodeMaintenanceDenied     = "MAINTENANCE_DENIED"
	TextCodeMaintenanceNotEnabled = "MAINTENANCE_DISABLED"
)

// ErrNoToken the request carried no credential
var ErrNoToken = goerrors.New("no session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired the token is well formed and signed but past its expiry
var ErrTokenExpired = goerrors.New("session token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidSignature the token signature does not match
var ErrInvalidSignature = goerrors.New("invalid token signature", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionRevoked the server side session for the token is gone
var ErrSessionRevoked = goerrors.New("session revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrMalformedCredential the token is not a three part signed token or
// misses required claims
var ErrMalformedCredential = goerrors.New("malformed credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeMalformedCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is what clients see for any of the credential failures
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden valid credential, wrong role
var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrVerificationNotFound = goerrors.New("verification token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeVerificationNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrVerificationExpired = goerrors.New("verification token expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeVerificationExpired).
	WithCode(goerrors.CodeBadRequest)

var ErrVerificationAlreadyDone = goerrors.New("email already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeVerificationDone).
	WithCode(goerrors.CodeConflict)

// ErrVerificationEmailMismatch the address is not the one on the user
// record. Unknown users get the same error.
var ErrVerificationEmailMismatch = goerrors.New("email does not belong to user", goerrors.CategoryValidation).
	WithTextCode(TextCodeVerificationMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrDatastoreUnavailable is fatal for the current request
var ErrDatastoreUnavailable = goerrors.New("datastore unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeDatastoreUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrInvalidCredentials sign in failed, the reason is not disclosed
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrChildNotFound no active parent/child link, reported as not found
var ErrChildNotFound = goerrors.New("child not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeChildNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrMaintenanceDenied = goerrors.New("maintenance token rejected", goerrors.CategoryAuthz).
	WithTextCode(TextCodeMaintenanceDenied).
	WithCode(goerrors.CodeForbidden)

var ErrMaintenanceDisabled = goerrors.New("maintenance endpoint disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeMaintenanceNotEnabled).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString empty passwords are never hashed
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword password does not match hash
var ErrMismatchedHashAndPassword = errors.New("password does not match")

// datastoreFailure wraps a datastore error so callers can tell it apart
// from the expected credential outcomes.
func datastoreFailure(err error, operation string) error {
	if err == nil {
		return nil
	}
	// Wrap keeps the category of an existing rich error, reset it here
	wrapped := goerrors.Wrap(err, goerrors.CategoryInternal, ErrDatastoreUnavailable.Message).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeDatastoreUnavailable).
		WithMetadata(map[string]any{"operation": operation})
	wrapped.Category = goerrors.CategoryInternal
	return wrapped
}

// HasTextCode reports whether any rich error in the chain carries code
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = errors.Unwrap(richErr)
	}
	return false
}

// IsDatastoreUnavailable reports fatal datastore failures
func IsDatastoreUnavailable(err error) bool {
	return HasTextCode(err, TextCodeDatastoreUnavailable)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for structurally invalid tokens
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeMalformedCredential)
}
