package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/atrai/atrai-backend-go/pkg/response"
)

// UserKey is the gin context key holding the authenticated subject.
const UserKey = "user"

var errMissingToken = errors.New("missing bearer token")

// Auth rejects requests without a valid HS256 bearer token signed with
// secret. The token subject is stored under UserKey.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}); err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(UserKey, claims.Subject)
		c.Next()
	}
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	response.Abort(c, http.StatusUnauthorized, message)
}
