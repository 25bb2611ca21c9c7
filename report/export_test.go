package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/AnTengye/contractlens/model"
)

func sampleResult(t *testing.T) *model.AnalysisResult {
	t.Helper()
	clauses := buildClauses(model.RiskHigh, model.RiskLow)
	clauses[0].Title = "Late Payment"
	clauses[0].OriginalText = "  Interest at 24% per annum.  "
	res, err := newTestAggregator().Build(Input{
		FileName:     "vendor-agreement.docx",
		ContractType: model.ContractVendor,
		Clauses:      clauses,
		Findings:     []model.RiskFinding{finding("interest", model.RiskHigh, 0), finding("overall", model.RiskMedium, -1)},
		Entities:     []model.ExtractedEntity{{Type: model.EntityAmount, Value: "Rs. 50,000", Confidence: 0.9}},
	})
	require.NoError(t, err)
	return res
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestFormatFileName(t *testing.T) {
	assert.Equal(t, "vendor-agreement-analysis.xlsx", FormatXLSX.FileName("vendor-agreement.docx"))
	assert.Equal(t, "contract-analysis.json", FormatJSON.FileName(""))
	assert.Equal(t, ".env-analysis.json", FormatJSON.FileName(".env"))
}

func TestJSONExport(t *testing.T) {
	res := sampleResult(t)
	data, err := JSON(res)
	require.NoError(t, err)

	var back model.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.ID, back.ID)
	assert.Equal(t, res.OverallRiskScore, back.OverallRiskScore)
	assert.Len(t, back.Risks, 2)
}

func TestXLSXExport(t *testing.T) {
	res := sampleResult(t)
	data, err := XLSX(res)
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)
	assert.Equal(t, "Summary", f.Sheets[0].Name)
	assert.Equal(t, "Clauses", f.Sheets[1].Name)
	assert.Equal(t, "Risks", f.Sheets[2].Name)
	assert.Equal(t, "Entities", f.Sheets[3].Name)

	summary := f.Sheet["Summary"]
	assert.Equal(t, "vendor-agreement.docx", summary.Rows[1].Cells[1].String())

	clauses := f.Sheet["Clauses"]
	require.Len(t, clauses.Rows, 3)
	assert.Equal(t, "Late Payment", clauses.Rows[1].Cells[1].String())
	assert.Equal(t, "Interest at 24% per annum.", clauses.Rows[1].Cells[11].String())

	risks := f.Sheet["Risks"]
	require.Len(t, risks.Rows, 3)
	assert.Equal(t, "1", risks.Rows[1].Cells[2].String())
	assert.Equal(t, "All", risks.Rows[2].Cells[2].String())

	entities := f.Sheet["Entities"]
	require.Len(t, entities.Rows, 2)
	assert.Equal(t, "Rs. 50,000", entities.Rows[1].Cells[1].String())
}

func TestExporterCachesByResult(t *testing.T) {
	e := NewExporter(8, time.Minute)
	res := sampleResult(t)

	first, err := e.Export(res, FormatJSON)
	require.NoError(t, err)

	// A cached rendering is served even if the caller's copy changes.
	res.FileName = "mutated.pdf"
	second, err := e.Export(res, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	e.Forget(res.ID)
	third, err := e.Export(res, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(third), "mutated.pdf")
}

func TestExporterDoesNotModifyResult(t *testing.T) {
	e := NewExporter(8, time.Minute)
	res := sampleResult(t)
	before := res.Clone()

	_, err := e.Export(res, FormatXLSX)
	require.NoError(t, err)
	_, err = e.Export(res, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, before, res)
}

func TestExporterErrors(t *testing.T) {
	e := NewExporter(8, time.Minute)
	_, err := e.Export(nil, FormatJSON)
	assert.Error(t, err)

	_, err = e.Export(sampleResult(t), Format("csv"))
	assert.True(t, model.IsKind(err, model.KindValidation))
}
