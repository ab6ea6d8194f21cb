// Package auth verifies HS256 bearer tokens issued by the identity service.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
)

// Claims accepts the subject either as "sub" or as Firebase-style "uid".
type Claims struct {
	UID  string `json:"uid,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*entity.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UID
	}
	if userID == "" {
		return nil, errors.Unauthorized("Token has no subject", nil)
	}

	role := entity.RoleUser
	if claims.Role == entity.RoleAdmin {
		role = entity.RoleAdmin
	}
	return &entity.Actor{UserID: userID, Role: role}, nil
}

// Issue signs a token for userID. Used by the development token endpoint and tests.
func (v *JWTVerifier) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
