package middlewares

import (
	"net/http"
	"time"

	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const HeaderCorrelationId = "x-correlation-id"

// CorrelationId attaches the caller's correlation id, or a fresh one, to the
// request context and echoes it back.
func CorrelationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(HeaderCorrelationId)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(HeaderCorrelationId, cid)
		c.Next()
	}
}

// RequestLogger writes one access log line per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		companyId, _ := utils.GetCompanyIdFromContext(c.Request.Context())
		entry := logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"status":         c.Writer.Status(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"correlation_id": cid,
			"company_id":     companyId,
		})
		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Info("request")
		}
	}
}
