package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterExposesReportHeadersToConfiguredOrigin(t *testing.T) {
	app := fiber.New()
	Register(app, Config{AllowOrigins: "http://localhost:5173"})
	app.Get("/report", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="r.html"`)
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	require.Contains(t, resp.Header.Get(fiber.HeaderAccessControlExposeHeaders), "Content-Disposition")
}

func TestRegisterRecoversAndLogsPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	Register(app, Config{Logger: &logger})
	app.Get("/boom", func(c *fiber.Ctx) error { panic("rubric store exploded") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Correlation-ID", "panic-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, buf.String(), "rubric store exploded")
	require.Contains(t, buf.String(), "panic-1")
}
