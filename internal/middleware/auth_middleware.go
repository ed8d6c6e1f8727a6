package middleware

import (
	"net/http"
	"strings"

	"gamebus/internal/auth"
	"gamebus/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const ClaimsKey = "claims"

// AuthMiddleware requires a token carrying scope. Browsers cannot set headers
// on a websocket upgrade, so the token query parameter is accepted as well.
func AuthMiddleware(tokens *auth.TokenService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}
		if !claims.HasScope(scope) {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("missing scope "+scope, "FORBIDDEN"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	if value == "" {
		return c.Query("token")
	}
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
