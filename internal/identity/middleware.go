package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxOperatorClaims = "rtcmas_operator_claims"

// RequireOperator returns a Gin middleware that enforces a valid operator
// Bearer token carrying scope.
//
// On success it injects the *OperatorClaims into the context under the
// "rtcmas_operator_claims" key.
func RequireOperator(tokens *TokenIssuer, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer operator token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid operator token: " + err.Error(),
			})
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "token lacks scope " + scope,
			})
			return
		}

		c.Set(ctxOperatorClaims, claims)
		c.Next()
	}
}

// OperatorFromCtx retrieves the claims injected by RequireOperator.
// Returns nil if the request was not authenticated.
func OperatorFromCtx(c *gin.Context) *OperatorClaims {
	v, _ := c.Get(ctxOperatorClaims)
	claims, _ := v.(*OperatorClaims)
	return claims
}
