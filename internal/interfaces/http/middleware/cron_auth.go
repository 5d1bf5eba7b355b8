package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/infrastructure/logger"
	"github.com/schoolpay/backend/internal/interfaces/http/dto"
)

const bearerPrefix = "Bearer "

// CronSecretAuth authorizes scheduler calls carrying
// "Authorization: Bearer <secret>". An empty secret rejects every request.
func CronSecretAuth(secret string) gin.HandlerFunc {
	expected := []byte(secret)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			logger.GetGinLogger(c).Warn("Billing trigger rejected, no cron secret configured")
			abortUnauthorized(c)
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c)
			return
		}
		token := []byte(strings.TrimSpace(header[len(bearerPrefix):]))

		if subtle.ConstantTimeCompare(token, expected) != 1 {
			logger.GetGinLogger(c).Warn("Billing trigger rejected, bad cron secret",
				zap.String("client_ip", c.ClientIP()))
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
		dto.ErrCodeUnauthorized,
		"Unauthorized",
		GetRequestID(c),
	))
}
