package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIDRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/ping", func(c *gin.Context) {
		*captured = Value(c)
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestIDMintsUUIDWhenAbsent(t *testing.T) {
	var seen string
	router := newIDRouter(&seen)

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	echoed := resp.Header().Get(Header)
	require.NotEmpty(t, echoed)
	assert.Equal(t, echoed, seen)
	_, err := uuid.Parse(echoed)
	assert.NoError(t, err)
}

func TestRequestIDAdoptsCallerValue(t *testing.T) {
	var seen string
	router := newIDRouter(&seen)

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(Header, "import-batch-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, "import-batch-42", resp.Header().Get(Header))
	assert.Equal(t, "import-batch-42", seen)
}

func TestValueOutsideMiddlewareIsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
