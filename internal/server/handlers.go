package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/service"
	"cryptoMarketAnalysis/internal/storage"
)

// analysisQuery accepts ids as repeated params or a comma separated list.
type analysisQuery struct {
	IDs  []string `form:"ids"`
	Days int      `form:"days" binding:"omitempty,min=1,max=3650"`
}

func (q analysisQuery) assets() []finance.AssetID {
	var out []finance.AssetID
	for _, raw := range q.IDs {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, finance.AssetID(id))
			}
		}
	}
	return out
}

var chartTitles = map[report.ChartKind]string{
	report.ChartPrice:       "Price History",
	report.ChartCumulative:  "Cumulative Returns",
	report.ChartVolatility:  "Rolling Volatility",
	report.ChartDrawdown:    "Drawdowns",
	report.ChartRisk:        "Risk Metrics",
	report.ChartCorrelation: "Return Correlation",
}

type chartRef struct {
	Kind  report.ChartKind
	Title string
	URL   string
}

type formData struct {
	Universe []string
	Selected map[string]bool
	Days     int
	MinDays  int
	MaxDays  int
}

type indexPage struct {
	Form  formData
	Error string
}

type analysisView struct {
	Form           formData
	Report         *report.Report
	SnapshotHeader []string
	Snapshot       [][]string
	RiskHeader     []string
	Risk           [][]string
	CorrHeader     []string
	Correlation    [][]string
	Charts         map[string]chartRef
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
			}
			m[k] = kv[i+1]
		}
		return m, nil
	},
	"datetime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04 MST")
	},
}

func (s *Server) form(selected []finance.AssetID, days int) formData {
	d := s.svc.Defaults()
	f := formData{Selected: map[string]bool{}, Days: days, MinDays: d.MinLookbackDays, MaxDays: d.MaxLookbackDays}
	for _, id := range s.svc.Universe() {
		f.Universe = append(f.Universe, string(id))
	}
	if len(selected) == 0 {
		for _, id := range d.AssetIDs {
			f.Selected[id] = true
		}
	}
	for _, id := range selected {
		f.Selected[strings.ToLower(string(id))] = true
	}
	if f.Days == 0 {
		f.Days = d.LookbackDays
	}
	return f
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{Form: s.form(nil, 0)})
}

func (s *Server) analysisPage(c *gin.Context) {
	var q analysisQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.HTML(http.StatusBadRequest, "index.html", indexPage{Form: s.form(nil, 0), Error: err.Error()})
		return
	}
	ids := q.assets()
	res, err := s.svc.Analyze(c.Request.Context(), service.Request{Assets: ids, LookbackDays: q.Days, Source: storage.SourceWeb})
	if err != nil {
		status, body := classify(err)
		msg := body.Message
		if body.Suggestion != "" {
			msg = fmt.Sprintf("Unknown asset. Did you mean %s?", body.Suggestion)
		}
		c.HTML(status, "index.html", indexPage{Form: s.form(ids, q.Days), Error: msg})
		return
	}

	r := res.Report
	view := analysisView{
		Form:           s.form(reportAssets(r), r.Config.LookbackDays),
		Report:         r,
		SnapshotHeader: report.SnapshotHeader,
		RiskHeader:     r.Risk.Header("Asset"),
		Risk:           r.Risk.Rows(finance.Value.String),
		CorrHeader:     r.Correlation.Header(""),
		Correlation:    r.Correlation.Rows(finance.Value.String),
		Charts:         make(map[string]chartRef, len(res.Charts)),
	}
	for kind, ref := range chartRefs(r.ID, res.Charts) {
		view.Charts[string(kind)] = ref
	}
	snap := make(map[finance.AssetID]finance.Snapshot, len(r.Snapshot))
	for _, sn := range r.Snapshot {
		snap[sn.ID] = sn
	}
	view.Snapshot = report.SnapshotRows(reportAssets(r), snap)
	c.HTML(http.StatusOK, "analysis.html", view)
}

func (s *Server) chart(c *gin.Context) {
	run, err := uuid.Parse(c.Param("run"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Kind: "invalid_request", Message: "bad run id"})
		return
	}
	kind, ok := report.ParseChartKind(strings.TrimSuffix(c.Param("file"), ".png"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, apiError{Kind: "not_found", Message: "unknown chart"})
		return
	}
	img, ok := s.svc.Cache().Chart(run, kind)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, apiError{Kind: "not_found", Message: "chart expired or never rendered"})
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", img)
}

type analysisResponse struct {
	*report.Report
	Charts map[report.ChartKind]string `json:"charts"`
}

func (s *Server) apiAnalysis(c *gin.Context) {
	var q analysisQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Kind: "invalid_request", Message: err.Error()})
		return
	}
	res, err := s.svc.Analyze(c.Request.Context(), service.Request{Assets: q.assets(), LookbackDays: q.Days, Source: storage.SourceAPI})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.cachedResponse(res.Report))
}

// apiRun returns a previous run while it is still in the report cache.
func (s *Server) apiRun(c *gin.Context) {
	run, err := uuid.Parse(c.Param("run"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Kind: "invalid_request", Message: "bad run id"})
		return
	}
	r, ok := s.svc.Cache().Report(run)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, apiError{Kind: "not_found", Message: "run expired or never existed"})
		return
	}
	c.JSON(http.StatusOK, s.cachedResponse(r))
}

func (s *Server) cachedResponse(r *report.Report) analysisResponse {
	kinds := s.svc.Cache().Kinds(r.ID)
	urls := make(map[report.ChartKind]string, len(kinds))
	for _, kind := range kinds {
		urls[kind] = chartURL(r.ID, kind)
	}
	return analysisResponse{Report: r, Charts: urls}
}

func (s *Server) apiAssets(c *gin.Context) {
	d := s.svc.Defaults()
	c.JSON(http.StatusOK, gin.H{
		"universe":          s.svc.Universe(),
		"default_selection": d.AssetIDs,
		"default_lookback":  d.LookbackDays,
		"min_lookback":      d.MinLookbackDays,
		"max_lookback":      d.MaxLookbackDays,
		"vs_currency":       d.VsCurrency,
	})
}

func chartRefs(run uuid.UUID, charts map[report.ChartKind][]byte) map[report.ChartKind]chartRef {
	out := make(map[report.ChartKind]chartRef, len(charts))
	for kind := range charts {
		out[kind] = chartRef{Kind: kind, Title: chartTitles[kind], URL: chartURL(run, kind)}
	}
	return out
}

func chartURL(run uuid.UUID, kind report.ChartKind) string {
	return fmt.Sprintf("/charts/%s/%s.png", run, kind)
}

func reportAssets(r *report.Report) []finance.AssetID {
	out := make([]finance.AssetID, len(r.Assets))
	for i, a := range r.Assets {
		out[i] = finance.AssetID(a)
	}
	return out
}
