package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"cltv-analytics/internal/models"
	"cltv-analytics/internal/services"
)

const maxTopCustomers = 20

var segmentTableTemplate = template.Must(template.New("segmentTable").Parse(`
<div id="segments-content">
<table class="modern-table">
<thead><tr><th>Segment</th><th>Customers</th><th>Mean CLV ({{.Horizon}}m)</th><th>Total CLV ({{.Horizon}}m)</th></tr></thead>
<tbody>
{{range .Data}}<tr>
<td><span class="segment-badge segment-{{.Segment}}">{{.Segment}}</span></td>
<td>{{.Count}}</td>
<td><strong>{{printf "%.2f" .Mean}}</strong></td>
<td>{{printf "%.2f" .Sum}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	pipeline *services.Pipeline
	logger   *slog.Logger
}

func NewSSEHandlers(pipeline *services.Pipeline, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		pipeline: pipeline,
		logger:   logger,
	}
}

type templateData struct {
	Data    []models.SegmentSummary
	Horizon int
}

func (h *SSEHandlers) renderSegmentTable(data []models.SegmentSummary, horizon int) (string, error) {
	var buf strings.Builder
	err := segmentTableTemplate.Execute(&buf, templateData{Data: data, Horizon: horizon})
	return buf.String(), err
}

// topCustomerRow is the chart-friendly shape sent as a signal.
type topCustomerRow struct {
	CustomerID string  `json:"customer_id"`
	CLV        float64 `json:"clv"`
	Purchases  float64 `json:"expected_purchases"`
	Segment    string  `json:"segment"`
}

func (h *SSEHandlers) topCustomers() []topCustomerRow {
	opts := h.pipeline.Result().Options
	var purchaseHorizon int
	if len(opts.PurchaseHorizons) > 0 {
		purchaseHorizon = opts.PurchaseHorizons[0]
	}

	ranked := services.RankByCLV(h.pipeline.Projections(), opts.SegmentHorizon, maxTopCustomers)
	rows := make([]topCustomerRow, len(ranked))
	for i, p := range ranked {
		rows[i] = topCustomerRow{
			CustomerID: p.CustomerID,
			CLV:        p.CLV[opts.SegmentHorizon],
			Purchases:  p.ExpectedPurchases[purchaseHorizon],
			Segment:    string(p.Segment),
		}
	}
	return rows
}

func (h *SSEHandlers) HandleSegments(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderSegmentTable(h.pipeline.Segments(), h.pipeline.Result().Options.SegmentHorizon)
	if err != nil {
		h.logger.Error("render segment table", "error", err)
		return
	}

	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	jsonData, err := json.Marshal(map[string]any{
		"topCustomers": h.topCustomers(),
	})
	if err != nil {
		h.logger.Error("marshal top customers", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="customers-content">Top customers loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderSegmentTable(h.pipeline.Segments(), h.pipeline.Result().Options.SegmentHorizon)
	if err != nil {
		h.logger.Error("render segment table", "error", err)
		return
	}
	sse.PatchElements(html)

	allSignals, err := json.Marshal(map[string]any{
		"topCustomers": h.topCustomers(),
		"modelParams":  h.pipeline.Model(),
		"runStats":     h.pipeline.Stats(),
	})
	if err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
