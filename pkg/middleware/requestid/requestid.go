// Package requestid tags every request with an ID so log lines from the
// allocation path can be correlated across handler, service, and repository.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the inbound and outbound request ID header. A caller-supplied
// value is trusted as-is so batch imports can thread their own correlation ID.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware adopts the caller's request ID or mints a fresh UUID, stores it
// on the Gin context, and echoes it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value reads the request ID back from the Gin context. It returns the empty
// string for requests that never passed through Middleware.
func Value(c *gin.Context) string {
	id, _ := c.Get(contextKey)
	s, _ := id.(string)
	return s
}
