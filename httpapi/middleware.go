package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	HeaderRequestID = "X-Request-Id"

	LogMsgHTTPRequest = "http request"

	LogAttrMethod     = "method"
	LogAttrPath       = "path"
	LogAttrStatus     = "status"
	LogAttrDurationMS = "duration_ms"
	LogAttrRequestID  = "request_id"
	LogAttrError      = "error"

	contextKeyRequestID = "request_id"
)

// CORS allows the given origins, or every origin when none are given.
func CORS(allowOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Requested-With", HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}

	if len(allowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
		config.AllowCredentials = true
	}

	return cors.New(config)
}

// AttachRequestID takes the request id from the X-Request-Id header or generates one, echoes it,
// and makes it the correlation id of every audit entry written for the request.
func AttachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(contextKeyRequestID, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(borrowing.WithCorrelationID(c.Request.Context(), requestID))

		c.Next()
	}
}

// RequestLogger logs every request after it was served: 5xx at error, 4xx at warn, the rest at info.
func RequestLogger(logger ledger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger == nil {
			return
		}

		status := c.Writer.Status()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []any{
			LogAttrMethod, c.Request.Method,
			LogAttrPath, path,
			LogAttrStatus, status,
			LogAttrDurationMS, borrowing.ToMilliseconds(time.Since(start)),
			LogAttrRequestID, c.GetString(contextKeyRequestID),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, LogAttrError, c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			logger.Error(LogMsgHTTPRequest, fields...)
		case status >= 400:
			logger.Warn(LogMsgHTTPRequest, fields...)
		default:
			logger.Info(LogMsgHTTPRequest, fields...)
		}
	}
}
