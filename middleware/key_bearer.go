package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// KeyByBearer keys by the subject of an HS256 bearer token signed with secret
//
// Missing, malformed or unverifiable tokens are handed to fallback (KeyByIP when nil).
// Signature checking only establishes who is counted; authorization stays with the handler.
func KeyByBearer(secret []byte, fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = KeyByIP
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) Principal {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			return fallback(c)
		}

		var claims jwt.RegisteredClaims
		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}); err != nil || claims.Subject == "" {
			return fallback(c)
		}
		return Principal{Key: claims.Subject, ID: claims.Subject}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
