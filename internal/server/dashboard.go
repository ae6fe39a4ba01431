package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/splitkit/splitkit/internal/stats"
)

type dashboardListData struct {
	Experiments []dashboardListItem
}

type dashboardListItem struct {
	ID           string
	Name         string
	Status       string
	VariantCount int
	Impressions  int
	Rate         string
	Goal         string
	CreatedAt    string
}

type dashboardDetailData struct {
	ID                string
	Name              string
	Status            string
	Goal              string
	CreatedAt         string
	Variants          []dashboardVariant
	Winner            string
	PValue            string
	RecommendedAction string
}

type dashboardVariant struct {
	ID          string
	Name        string
	Impressions int
	Conversions int
	Rate        string
	Revenue     string
	CILow       string
	CIHigh      string
	IsWinner    bool
}

// handleDashboard serves the read-only admin pages. Both the list and
// the per-experiment detail live behind the admin token.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	if !s.authorized(w, r) {
		http.Error(w, "Unauthorized. Append ?token=<admin token> to the URL.", http.StatusUnauthorized)
		return
	}

	if rest := strings.TrimPrefix(r.URL.Path, "/dashboard/experiment/"); rest != r.URL.Path && rest != "" {
		s.handleDashboardExperiment(w, r, rest)
		return
	}

	experiments, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	items := make([]dashboardListItem, len(experiments))
	for i, exp := range experiments {
		events, _ := s.store.EventsByExperiment(r.Context(), exp.ExperimentID)
		results := stats.Aggregate(exp, events)

		impressions := 0
		conversions := 0
		for _, v := range results.Variants {
			impressions += v.Impressions
			conversions += v.Conversions
		}
		rate := "0%"
		if impressions > 0 {
			rate = formatPercentage(float64(conversions) / float64(impressions) * 100)
		}

		items[i] = dashboardListItem{
			ID:           exp.ExperimentID,
			Name:         exp.Name,
			Status:       string(exp.Status),
			VariantCount: len(exp.Variants),
			Impressions:  impressions,
			Rate:         rate,
			Goal:         string(exp.GoalMetric),
			CreatedAt:    exp.CreatedAt.Format("Jan 2, 2006"),
		}
	}

	renderPage(w, "Experiments", listTemplate, dashboardListData{Experiments: items})
}

func (s *Server) handleDashboardExperiment(w http.ResponseWriter, r *http.Request, experimentID string) {
	exp, err := s.store.Get(r.Context(), experimentID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	events, err := s.store.EventsByExperiment(r.Context(), experimentID)
	if err != nil {
		http.Error(w, "Failed to load events", http.StatusInternalServerError)
		return
	}

	results := stats.Aggregate(exp, events)

	variants := make([]dashboardVariant, len(results.Variants))
	for i, v := range results.Variants {
		name := v.VariantID
		if ev := exp.Variant(v.VariantID); ev != nil && ev.Name != "" {
			name = ev.Name
		}
		variants[i] = dashboardVariant{
			ID:          v.VariantID,
			Name:        name,
			Impressions: v.Impressions,
			Conversions: v.Conversions,
			Rate:        formatPercentage(v.ConversionRate * 100),
			Revenue:     fmt.Sprintf("%.2f", v.Revenue),
			CILow:       formatPercentage(v.ConfidenceInterval[0] * 100),
			CIHigh:      formatPercentage(v.ConfidenceInterval[1] * 100),
			IsWinner:    v.VariantID == results.Winner,
		}
	}

	renderPage(w, exp.Name, detailTemplate, dashboardDetailData{
		ID:                exp.ExperimentID,
		Name:              exp.Name,
		Status:            string(exp.Status),
		Goal:              string(exp.GoalMetric),
		CreatedAt:         exp.CreatedAt.Format("Jan 2, 2006"),
		Variants:          variants,
		Winner:            results.Winner,
		PValue:            fmt.Sprintf("%.4f", results.StatisticalSignificance),
		RecommendedAction: string(results.RecommendedAction),
	})
}

func renderPage(w http.ResponseWriter, title string, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layoutTemplate.Execute(w, map[string]any{"Title": title}); err != nil {
		return
	}
	tmpl.Execute(w, data)
	fmt.Fprint(w, "</body></html>")
}

func formatPercentage(p float64) string {
	if p < 0.01 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", p)
}

var layoutTemplate = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - splitkit</title>
<style>
body{font-family:system-ui,sans-serif;max-width:900px;margin:2rem auto;padding:0 1rem;color:#111}
table{border-collapse:collapse;width:100%;margin:1rem 0}
th,td{text-align:left;padding:.4rem .8rem;border-bottom:1px solid #ddd}
th{font-size:.8rem;text-transform:uppercase;color:#666}
.winner{font-weight:bold}
.muted{color:#666;font-size:.9rem}
a{color:#0645ad;text-decoration:none}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
`))

var listTemplate = template.Must(template.New("list").Parse(`<table>
<tr><th>Name</th><th>Status</th><th>Variants</th><th>Goal</th><th>Impressions</th><th>Rate</th><th>Created</th></tr>
{{range .Experiments}}<tr>
<td><a href="/dashboard/experiment/{{.ID}}">{{.Name}}</a></td>
<td>{{.Status}}</td>
<td>{{.VariantCount}}</td>
<td>{{.Goal}}</td>
<td>{{.Impressions}}</td>
<td>{{.Rate}}</td>
<td class="muted">{{.CreatedAt}}</td>
</tr>{{end}}
</table>
<p class="muted"><a href="/dashboard?logout=1">Log out</a></p>
`))

var detailTemplate = template.Must(template.New("detail").Parse(`<p class="muted">{{.ID}} &middot; {{.Status}} &middot; goal: {{.Goal}} &middot; created {{.CreatedAt}}</p>
<table>
<tr><th>Variant</th><th>Impressions</th><th>Conversions</th><th>Rate</th><th>Revenue</th><th>CI</th></tr>
{{range .Variants}}<tr{{if .IsWinner}} class="winner"{{end}}>
<td>{{.Name}}{{if .IsWinner}} &#9733;{{end}}</td>
<td>{{.Impressions}}</td>
<td>{{.Conversions}}</td>
<td>{{.Rate}}</td>
<td>{{.Revenue}}</td>
<td>{{.CILow}} - {{.CIHigh}}</td>
</tr>{{end}}
</table>
{{if .Winner}}<p>Winner: <strong>{{.Winner}}</strong> (p = {{.PValue}})</p>{{else}}<p class="muted">No significant winner yet (p = {{.PValue}})</p>{{end}}
<p class="muted">Recommended action: {{.RecommendedAction}}</p>
<p class="muted"><a href="/dashboard">Back</a></p>
`))
