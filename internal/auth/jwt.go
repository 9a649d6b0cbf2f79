package auth

import (
	"errors"
	"fmt"
	"time"

	"circle-go/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures. They are kept apart for logging; callers that face
// clients collapse all of them into a single "unauthorized" outcome.
var (
	ErrTokenMalformed    = errors.New("credential is malformed")
	ErrTokenBadSignature = errors.New("credential signature is invalid")
	ErrTokenExpired      = errors.New("credential has expired")
)

// Claims embeds jwt.RegisteredClaims. UserID is the only identity claim;
// everything else is registered metadata.
type Claims struct {
	UserID uint `json:"userId"`
	jwt.RegisteredClaims
}

// GenerateToken mints a session credential for userID, valid from now for
// authCfg.JWTExpiry.
func GenerateToken(userID uint, authCfg config.AuthConfig, now time.Time) (string, error) {
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate jwt id: %w", err)
	}

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jwtID.String(),
			Issuer:    authCfg.JWTIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return tokenString, nil
}

// VerifyToken validates tokenString against secret as of now and returns its
// claims. The signature is checked before expiry, so a forged token that is
// also expired reports ErrTokenBadSignature. It performs no I/O; whether the
// user still exists is for the caller to find out.
func VerifyToken(tokenString, secret string, now time.Time) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing userId claim", ErrTokenMalformed)
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		// missing exp, undecodable claims
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
