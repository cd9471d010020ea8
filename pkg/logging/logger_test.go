package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// lastLine decodes the last JSON log line written to buf
func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestFromContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "debug", Output: &buf})

	logger := FromContext(WithRequestID(context.Background(), "req-1"))
	logger.Info().Msg("hello")
	assert.Equal(t, "req-1", lastLine(t, &buf)["request_id"])

	md := metadata.Pairs(RequestIDHeader, "req-2")
	logger = FromContext(metadata.NewIncomingContext(context.Background(), md))
	logger.Info().Msg("hello")
	assert.Equal(t, "req-2", lastLine(t, &buf)["request_id"])

	assert.Empty(t, RequestID(context.Background()))
}

func TestUnaryServerInterceptor(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Output: &buf})

	interceptor := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/runebook.v1.RuneBook/GetOrder"}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "abc"))

	var seen string
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, status.Error(codes.NotFound, "order not found")
	})
	require.Error(t, err)
	assert.Equal(t, "abc", seen)

	entry := lastLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "NotFound", entry["grpc.code"])
	assert.Equal(t, "/runebook.v1.RuneBook/GetOrder", entry["grpc.method"])
}

func TestUnaryServerInterceptorMintsRequestID(t *testing.T) {
	Setup(Config{Level: "error", Output: &bytes.Buffer{}})

	var seen string
	_, err := UnaryServerInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			seen = RequestID(ctx)
			return "ok", nil
		})
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	Setup(Config{Level: "info", Output: &buf})

	router := gin.New()
	router.Use(GinMiddleware())
	var seen string
	router.GET("/api/v1/orders/:id", func(c *gin.Context) {
		seen = RequestID(c.Request.Context())
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/o-1", nil)
	req.Header.Set("X-Request-Id", "http-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "http-1", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "http-1", seen)

	entry := lastLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/api/v1/orders/:id", entry["http.route"])
	assert.Equal(t, float64(404), entry["http.status"])
}
