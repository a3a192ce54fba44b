package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IssuedToken is a freshly signed token plus the values the session
// record needs.
type IssuedToken struct {
	Raw       string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens. It does not evaluate
// expiry: Verify accepts an expired token so callers can tell expired
// from forged.
type TokenService struct {
	signingKey []byte
	issuer     string
	clock      Clock
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string) *TokenService {
	return &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		clock:      systemClock,
		logger:     defLogger{},
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = normalizeLogger(logger)
	return ts
}

func (ts *TokenService) WithClock(clock Clock) *TokenService {
	if clock != nil {
		ts.clock = clock
	}
	return ts
}

// Issue signs a token for principal that expires after ttl
func (ts *TokenService) Issue(principal Principal, ttl time.Duration) (IssuedToken, error) {
	if principal.IsZero() {
		return IssuedToken{}, errors.New("principal must not be empty", errors.CategoryInternal)
	}

	if ttl <= 0 {
		return IssuedToken{}, errors.New("token ttl must be positive", errors.CategoryInternal).
			WithMetadata(map[string]any{"ttl": ttl.String()})
	}

	// JWT timestamps have second precision. iat rounds down and exp
	// rounds up so the token never lives shorter than ttl.
	issuedAt := ts.clock().UTC()
	expiresAt := ceilSecond(issuedAt.Add(ttl))
	issuedAt = issuedAt.Truncate(time.Second)

	claims := claimsFromPrincipal(principal)
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.ID = uuid.NewString()
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	raw, err := ts.SignClaims(claims)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{
		Raw:       raw,
		TokenID:   claims.TokenID(),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); !down.Equal(t) {
		return down.Add(time.Second)
	}
	return t
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify checks structure and signature and returns the claims. It fails
// with ErrInvalidSignature or ErrMalformedCredential.
func (ts *TokenService) Verify(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, errors.Wrap(err, ErrInvalidSignature.Category, ErrInvalidSignature.Message).
				WithCode(ErrInvalidSignature.Code).
				WithTextCode(ErrInvalidSignature.TextCode)
		}
		return nil, errors.Wrap(err, ErrMalformedCredential.Category, ErrMalformedCredential.Message).
			WithCode(ErrMalformedCredential.Code).
			WithTextCode(ErrMalformedCredential.TextCode)
	}

	if !claims.complete() {
		return nil, ErrMalformedCredential.Clone().
			WithMetadata(map[string]any{"reason": "missing required claims"})
	}

	if ts.issuer != "" && claims.Issuer != ts.issuer {
		return nil, ErrMalformedCredential.Clone().
			WithMetadata(map[string]any{"reason": "issuer mismatch"})
	}

	return claims, nil
}
