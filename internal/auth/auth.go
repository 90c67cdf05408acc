package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthFailed covers every verification failure: missing token, bad
// signature, expired claims, malformed identity.
var ErrAuthFailed = errors.New("auth failed")

const (
	RoleDriver = "driver"
	RoleRider  = "rider"
)

// Identity is the verified subject of a token.
type Identity struct {
	UserID string
	Name   string
	Role   string
	Rating float64 // rider rating snapshot carried in the token, 5.0 when absent
}

// Verifier checks a signed token and returns the identity it carries.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier validates HS256 tokens issued by the account service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrAuthFailed
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrAuthFailed
	}
	id := Identity{Rating: 5.0}
	if id.UserID, ok = claims["sub"].(string); !ok || id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrAuthFailed)
	}
	if id.Role, ok = claims["role"].(string); !ok || id.Role == "" {
		return Identity{}, fmt.Errorf("%w: missing role claim", ErrAuthFailed)
	}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if rating, ok := claims["rating"].(float64); ok {
		id.Rating = rating
	}
	return id, nil
}

// Sign mints a token for the given identity. The account service owns token
// issuance in production; this exists for local tooling and tests.
func Sign(secret string, id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":    id.UserID,
		"name":   id.Name,
		"role":   id.Role,
		"rating": id.Rating,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
