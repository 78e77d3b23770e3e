package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubiai-api/internal/models"
)

func TestRenderReport(t *testing.T) {
	result := sampleResult("e1")
	result.Filename = "My Flow Chart.PNG"
	result.CriteriaScores = []models.CriterionScore{{
		Criterion:  "Logical Flow",
		Weight:     25,
		Score:      22,
		MaxScore:   25,
		Percentage: 88,
		Status:     models.ScoreStatusGood,
		Feedback:   "<script>alert(1)</script> loops end",
	}}
	result.AIInsights.Strengths = []string{"Clear labels"}
	result.AIInsights.Summary = "Good work"

	now := time.Date(2025, 11, 2, 14, 0, 0, 0, time.UTC)
	filename, body, err := RenderReport(result, now)
	require.NoError(t, err)
	require.Equal(t, "my-flow-chart-evaluation-2025-11-02.html", filename)

	html := string(body)
	require.Contains(t, html, "80%")
	require.Contains(t, html, "grade B+")
	require.Contains(t, html, "22 / 25")
	require.Contains(t, html, "Clear labels")
	require.Contains(t, html, "&lt;script&gt;")
	require.NotContains(t, html, "<script>")
}

func TestReportBaseNameFallsBack(t *testing.T) {
	require.Equal(t, "submission", reportBaseName(""))
	require.Equal(t, "submission", reportBaseName("???.txt"))
	require.Equal(t, "algo_v2", reportBaseName("dir/Algo_v2.pdf"))
}
