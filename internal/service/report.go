package service

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/rubiai-api/internal/models"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(value float64) string { return fmt.Sprintf("%.0f%%", value) },
	"num": func(value float64) string { return formatWeight(value) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Evaluation Report - {{.Result.Filename}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 40px; color: #1f2937; }
h1 { color: #4f46e5; margin-bottom: 4px; }
.meta { color: #6b7280; margin-bottom: 24px; }
.score { font-size: 40px; font-weight: 700; color: #4f46e5; }
table { width: 100%; border-collapse: collapse; margin: 16px 0 24px; }
th, td { border: 1px solid #e5e7eb; padding: 8px 10px; text-align: left; vertical-align: top; }
th { background: #f3f4f6; }
.status-excellent { color: #059669; }
.status-good { color: #2563eb; }
.status-fair { color: #d97706; }
.status-poor { color: #dc2626; }
</style>
</head>
<body>
<h1>RubiAI Evaluation Report</h1>
<div class="meta">
<div>File: {{.Result.Filename}}{{if .Result.FileType}} ({{.Result.FileType}}){{end}}</div>
<div>Rubric type: {{.Result.RubricType}}</div>
<div>Evaluated: {{.Result.Timestamp.Format "2006-01-02 15:04 MST"}}</div>
<div>Evaluation ID: {{.Result.ID}}</div>
<div>Generated: {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</div>
</div>

<h2>Overall Score</h2>
<div class="score">{{pct .Result.OverallScore.Percentage}}</div>
<p>{{num .Result.OverallScore.Points}} / {{num .Result.OverallScore.Total}} points, grade {{.Result.OverallScore.Grade}}</p>

<h2>Criteria</h2>
<table>
<thead><tr><th>Criterion</th><th>Weight</th><th>Score</th><th>Percentage</th><th>Status</th><th>Feedback</th></tr></thead>
<tbody>
{{range .Result.CriteriaScores}}<tr>
<td>{{.Criterion}}</td>
<td>{{num .Weight}}%</td>
<td>{{num .Score}} / {{num .MaxScore}}</td>
<td>{{pct .Percentage}}</td>
<td class="status-{{.Status}}">{{.Status}}</td>
<td>{{.Feedback}}</td>
</tr>
{{end}}</tbody>
</table>

<h2>AI Insights</h2>
<h3>Strengths</h3>
<ul>{{range .Result.AIInsights.Strengths}}<li>{{.}}</li>{{end}}</ul>
<h3>Areas for Improvement</h3>
<ul>{{range .Result.AIInsights.Improvements}}<li>{{.}}</li>{{end}}</ul>
<h3>Summary</h3>
<p>{{.Result.AIInsights.Summary}}</p>
</body>
</html>
`))

// RenderReport formats result as a self-contained HTML document and names it after the original file and now.
func RenderReport(result models.EvaluationResult, now time.Time) (string, []byte, error) {
	var buf bytes.Buffer
	data := struct {
		Result      models.EvaluationResult
		GeneratedAt time.Time
	}{Result: result, GeneratedAt: now}

	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", nil, err
	}

	filename := fmt.Sprintf("%s-evaluation-%s.html", reportBaseName(result.Filename), now.Format("2006-01-02"))
	return filename, buf.Bytes(), nil
}

func reportBaseName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" || base == "." {
		return "submission"
	}
	return base
}
