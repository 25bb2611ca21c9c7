package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/AnTengye/contractlens/model"
)

var (
	exportCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contractlens_export_cache_hits_total",
		Help: "Exports served from the rendered-report cache.",
	})
	exportCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contractlens_export_cache_misses_total",
		Help: "Exports that had to be rendered.",
	})
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts "xlsx" or "json", case-insensitively. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON, "":
		return FormatJSON, nil
	}
	return "", model.ValidationError(fmt.Sprintf("unsupported export format %q", s))
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// FileName derives a download name from the analysed file name.
func (f Format) FileName(source string) string {
	base := source
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "contract"
	}
	return base + "-analysis." + string(f)
}

// Exporter renders stored results. Results never change after they are
// built, so rendered bytes are cached by result ID and format.
type Exporter struct {
	cache *expirable.LRU[string, []byte]
}

func NewExporter(size int, ttl time.Duration) *Exporter {
	return &Exporter{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Export renders r in format f.
func (e *Exporter) Export(r *model.AnalysisResult, f Format) ([]byte, error) {
	if r == nil {
		return nil, eris.New("export: nil result")
	}
	key := r.ID + "." + string(f)
	if data, ok := e.cache.Get(key); ok {
		exportCacheHits.Inc()
		return data, nil
	}
	exportCacheMisses.Inc()

	var (
		data []byte
		err  error
	)
	switch f {
	case FormatXLSX:
		data, err = XLSX(r)
	case FormatJSON:
		data, err = JSON(r)
	default:
		return nil, model.ValidationError(fmt.Sprintf("unsupported export format %q", f))
	}
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, data)
	return data, nil
}

// Forget drops cached renderings of a result.
func (e *Exporter) Forget(resultID string) {
	e.cache.Remove(resultID + "." + string(FormatXLSX))
	e.cache.Remove(resultID + "." + string(FormatJSON))
}

// JSON renders the result as indented JSON.
func JSON(r *model.AnalysisResult) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal json")
	}
	return data, nil
}

// XLSX renders the result as a workbook with Summary, Clauses, Risks and
// Entities sheets.
func XLSX(r *model.AnalysisResult) ([]byte, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, "Field", "Value")
	addRow(summary, "File", r.FileName)
	addRow(summary, "Analysed At", r.CreatedAt.Format(time.RFC3339))
	addRow(summary, "Contract Type", string(r.ContractType))
	addRow(summary, "Language", string(r.Language))
	row := summary.AddRow()
	row.AddCell().SetString("Overall Risk Score")
	row.AddCell().SetInt(r.OverallRiskScore)
	addRow(summary, "Risk Level", string(r.RiskLevel))
	addRow(summary, "Executive Summary", r.ExecutiveSummary)
	for i, k := range r.KeyFindings {
		addRow(summary, fmt.Sprintf("Key Finding %d", i+1), k)
	}
	for i, rec := range r.Recommendations {
		addRow(summary, fmt.Sprintf("Recommendation %d", i+1), rec)
	}

	clauses, err := f.AddSheet("Clauses")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add clauses sheet")
	}
	addRow(clauses, "#", "Title", "Type", "Category", "Risk", "Flagged", "Reason", "Explanation", "Suggested Alternative", "Confidence", "Pages", "Text")
	for _, c := range r.Clauses {
		row := clauses.AddRow()
		row.AddCell().SetInt(c.Index + 1)
		row.AddCell().SetString(c.Title)
		row.AddCell().SetString(string(c.ClauseType))
		row.AddCell().SetString(c.Category)
		row.AddCell().SetString(string(c.RiskLevel))
		row.AddCell().SetString(yesNo(c.Flagged))
		row.AddCell().SetString(c.RiskReason)
		row.AddCell().SetString(c.SimplifiedExplanation)
		row.AddCell().SetString(c.SuggestedAlternative)
		row.AddCell().SetFloat(c.Confidence)
		row.AddCell().SetString(joinPages(c.Pages))
		row.AddCell().SetString(strings.TrimSpace(c.OriginalText))
	}

	risks, err := f.AddSheet("Risks")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add risks sheet")
	}
	addRow(risks, "Severity", "Category", "Clause", "Description", "Recommendation")
	for _, rf := range r.Risks {
		clause := "All"
		if rf.ClauseIndex >= 0 {
			clause = fmt.Sprintf("%d", rf.ClauseIndex+1)
		}
		addRow(risks, string(rf.Severity), rf.Category, clause, rf.Description, rf.Recommendation)
	}

	entities, err := f.AddSheet("Entities")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add entities sheet")
	}
	addRow(entities, "Type", "Value", "Confidence")
	for _, en := range r.Entities {
		row := entities.AddRow()
		row.AddCell().SetString(string(en.Type))
		row.AddCell().SetString(en.Value)
		row.AddCell().SetFloat(en.Confidence)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "xlsx: write workbook")
	}
	return buf.Bytes(), nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
