package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesRubiAICollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler(zerolog.Nop()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rubiai_evaluations_in_progress")
	require.Contains(t, string(body), "rubiai_event_stream_clients")
	require.Contains(t, string(body), "promhttp_metric_handler_requests_total")
}
