package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the staff access token minted by the identity provider.
type JwtCustomClaim struct {
	UserId      int      `json:"user_id"`
	CompanyId   string   `json:"company_id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	IsAdmin     bool     `json:"is_admin"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("IDP_JWT_SECRET")
	if secret == "" {
		return []byte("cosmo-dev-secret")
	}
	return []byte(secret)
}

// JwtGenerate signs claims the way the identity provider does. Used by
// local tooling and tests; production tokens are never minted here.
func JwtGenerate(claim JwtCustomClaim, lifespan time.Duration) (string, error) {
	now := time.Now()
	claim.StandardClaims.IssuedAt = now.Unix()
	claim.StandardClaims.ExpiresAt = now.Add(lifespan).Unix()
	if claim.StandardClaims.Subject == "" {
		claim.StandardClaims.Subject = fmt.Sprint(claim.UserId)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claim)
	return t.SignedString(getJwtSecret())
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}
