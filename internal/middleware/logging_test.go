package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"credledger/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDAndContext(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID(), TracingMiddleware(), ContextMiddleware(), StructuredLogger())
	app.Get("/", func(c *fiber.Ctx) error {
		rid, _ := c.UserContext().Value(observability.RequestIDKey).(string)
		tid, _ := c.UserContext().Value(observability.TraceIDKey).(string)
		return c.JSON(fiber.Map{"rid": rid, "tid": tid})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	resp2, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, "caller-supplied", resp2.Header.Get(RequestIDHeader))
}

func TestInitMetrics_Singleton(t *testing.T) {
	a := InitMetrics("credledger-test")
	b := InitMetrics("credledger-test")
	assert.Same(t, a, b)

	app := fiber.New()
	app.Use(MetricsMiddleware(a))
	a.RegisterAt(app, "/metrics")
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
