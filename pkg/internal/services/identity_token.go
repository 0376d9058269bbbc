package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edvisory/portal-messaging/pkg/internal/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	DefaultIdentityIssuer = "portal"
	DefaultIdentityTTL    = 24 * time.Hour
)

// IdentityClaims is what the portal's identity gate signs for every session.
type IdentityClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (v IdentityClaims) Identity() Identity {
	return Identity{UserID: v.UserID, Role: v.Role}
}

func identityIssuer() string {
	if issuer := viper.GetString("security.identity_issuer"); len(issuer) > 0 {
		return issuer
	}
	return DefaultIdentityIssuer
}

func identitySecret() []byte {
	return []byte(viper.GetString("security.identity_secret"))
}

func identityTTL() time.Duration {
	if ttl := viper.GetDuration("security.identity_ttl"); ttl > 0 {
		return ttl
	}
	return DefaultIdentityTTL
}

func CreateIdentityToken(user Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		UserID: user.UserID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    identityIssuer(),
			Subject:   fmt.Sprintf("%d", user.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tks, err := token.SignedString(identitySecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tks, nil
}

func ParseIdentityToken(tk string) (IdentityClaims, error) {
	var claims IdentityClaims
	token, err := jwt.ParseWithClaims(tk, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return identitySecret(), nil
	}, jwt.WithIssuer(identityIssuer()), jwt.WithExpirationRequired())
	if err != nil {
		return claims, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if !token.Valid || !claims.Identity().IsAuthenticated() {
		return claims, fmt.Errorf("%w: invalid token", ErrNotAuthenticated)
	}
	return claims, nil
}

// RevokeIdentityToken denies the token until it would have expired anyway.
func RevokeIdentityToken(ctx context.Context, claims IdentityClaims) error {
	if claims.ExpiresAt == nil || len(claims.ID) == 0 {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return cache.Revoke(ctx, claims.ID, ttl)
}

// RefreshIdentityToken issues a new token for the same identity and revokes the presented one.
func RefreshIdentityToken(ctx context.Context, claims IdentityClaims) (string, error) {
	tk, err := CreateIdentityToken(claims.Identity(), identityTTL())
	if err != nil {
		return "", err
	}
	if err := RevokeIdentityToken(ctx, claims); err != nil {
		return "", err
	}
	return tk, nil
}
