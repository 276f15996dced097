package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hrportal/internal/apiclient"
)

// ClaimsKey is the gin context key holding the caller's Claims.
const ClaimsKey = "claims"

// BearerAuth enforces bearer JWT tokens signed with HS256. The raw token is
// forwarded so backend calls made for this request act as the caller.
func BearerAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(apiclient.WithBearer(c.Request.Context(), tokenStr))
		c.Next()
	}
}

// ClaimsFrom returns the claims set by BearerAuth.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
