package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/contractlens/analyzer"
	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/ingest"
	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pipeline"
	"github.com/AnTengye/contractlens/report"
	"github.com/AnTengye/contractlens/service"
)

const leaseText = `LEASE AGREEMENT

1. Rent
The Tenant shall pay monthly rent of Rs. 25,000 within 5 days of the due date. Late payments shall attract interest at 24% per annum.

2. Renewal
This Lease shall automatically renew for successive periods of 12 months unless terminated with 90 days notice.

3. Dispute Resolution
Any dispute shall be referred to arbitration in Mumbai.
`

type testServer struct {
	router  *gin.Engine
	manager *pipeline.Manager
	cfg     *config.Config
}

// newTestServer wires the router against an in-memory pipeline. A non-nil
// extractor replaces the default registry.
func newTestServer(t *testing.T, extractor ingest.Extractor, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testConfig(t)
	cfg.Server.RateLimitPerMin = 10000
	cfg.Server.RateLimitBurst = 10000
	for _, fn := range mutate {
		fn(cfg)
	}
	if extractor == nil {
		extractor = ingest.NewDefaultRegistry(nil)
	}

	manager := pipeline.NewManager(pipeline.Options{
		Ingest:        cfg.Ingest,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		Store:         service.NewMemoryStore(0),
		Extractor:     extractor,
		Analyzer:      analyzer.New(analyzer.NewRuleClassifier(), cfg.Analyzer),
		Aggregator:    report.NewAggregator(cfg.Report),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	router := NewRouter(Deps{
		Config:   cfg,
		Manager:  manager,
		Exporter: report.NewExporter(16, time.Minute),
	})
	return &testServer{router: router, manager: manager, cfg: cfg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *testServer) authed(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return s.do(req)
}

func (s *testServer) upload(t *testing.T, token, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return s.do(req)
}

func (s *testServer) submit(t *testing.T, token string, content string) pipeline.Handle {
	t.Helper()
	w := s.upload(t, token, "lease.txt", []byte(content))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var h pipeline.Handle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	require.NotEmpty(t, h.ID)
	return h
}

func (s *testServer) wait(t *testing.T, id string) *model.AnalysisRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := s.manager.Wait(ctx, id)
	require.NoError(t, err)
	return rec
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, model.ErrorKind) {
	t.Helper()
	var body struct {
		Error string          `json:"error"`
		Kind  model.ErrorKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error, body.Kind
}

// blockingExtractor holds every extraction until its context ends.
func blockingExtractor(started chan<- string) ingest.Extractor {
	return ingest.ExtractorFunc(func(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
		started <- doc.FileName
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func TestRouterAnalysisLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice", "alice-pass")

	h := s.submit(t, token, leaseText)
	assert.Equal(t, model.StatusPending, h.Status)
	assert.False(t, h.Deduplicated)
	assert.Len(t, h.DocumentKey, 64)

	rec := s.wait(t, h.ID)
	require.Equal(t, model.StatusComplete, rec.Status, rec.ErrorMsg)

	w := s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/progress", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+h.ID+`","status":"complete","progress":100,"error_kind":"","error_msg":""}`, w.Body.String())

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/result", token)
	require.Equal(t, http.StatusOK, w.Code)
	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "lease.txt", res.FileName)
	require.NotEmpty(t, res.Clauses)
	assert.Equal(t, len(leaseText), res.Clauses[len(res.Clauses)-1].Span.End)
	assert.GreaterOrEqual(t, res.OverallRiskScore, 0)
	assert.LessOrEqual(t, res.OverallRiskScore, 100)
	assert.Equal(t, report.Band(res.OverallRiskScore), res.RiskLevel)
	assert.NotEmpty(t, res.ExecutiveSummary)

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID, token)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "acme", got.Tenant)
	require.NotNil(t, got.Result)
	assert.Equal(t, res.ID, got.Result.ID)

	w = s.authed(http.MethodGet, "/api/analyses", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Analyses []AnalysisSummary `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Analyses, 1)
	assert.Equal(t, h.ID, list.Analyses[0].ID)
	require.NotNil(t, list.Analyses[0].Score)
	assert.Equal(t, res.OverallRiskScore, *list.Analyses[0].Score)
}

func TestRouterExport(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice", "alice-pass")
	h := s.submit(t, token, leaseText)
	s.wait(t, h.ID)

	w := s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/export?format=xlsx", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.FormatXLSX.ContentType(), w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="lease-analysis.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/export", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="lease-analysis.json"`, w.Header().Get("Content-Disposition"))
	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "lease.txt", res.FileName)

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/export?format=pdf", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, kind := decodeError(t, w)
	assert.Equal(t, model.KindValidation, kind)
}

func TestRouterSubmitRejects(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *config.Config) {
		cfg.Ingest.MaxBytes = 64
	})
	token := s.login(t, "alice", "alice-pass")

	w := s.upload(t, token, "big.txt", bytes.Repeat([]byte("a"), 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	_, kind := decodeError(t, w)
	assert.Equal(t, model.KindSizeLimit, kind)

	w = s.upload(t, token, "huge.txt", bytes.Repeat([]byte("a"), 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	msg, kind := decodeError(t, w)
	assert.Equal(t, model.KindSizeLimit, kind)
	assert.Equal(t, "upload exceeds the 64 byte limit", msg)

	w = s.upload(t, token, "tool.exe", []byte("MZ binary"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	msg, kind = decodeError(t, w)
	assert.Equal(t, model.KindValidation, kind)
	assert.Contains(t, msg, "unsupported file type")

	w = s.upload(t, token, "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.authed(http.MethodPost, "/api/analyses", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.authed(http.MethodGet, "/api/analyses", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analyses":[]}`, w.Body.String())
}

func TestRouterResultNotReadyAndCancel(t *testing.T) {
	started := make(chan string, 1)
	s := newTestServer(t, blockingExtractor(started))
	token := s.login(t, "alice", "alice-pass")

	h := s.submit(t, token, leaseText)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never started")
	}

	w := s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/result", token)
	assert.Equal(t, http.StatusConflict, w.Code)
	msg, kind := decodeError(t, w)
	assert.Equal(t, model.KindNotReady, kind)
	assert.Equal(t, "analysis is processing", msg)

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/export?format=xlsx", token)
	assert.Equal(t, http.StatusConflict, w.Code)

	resubmitted := s.submit(t, token, leaseText)
	assert.True(t, resubmitted.Deduplicated)
	assert.Equal(t, h.ID, resubmitted.ID)

	w = s.authed(http.MethodPost, "/api/analyses/"+h.ID+"/cancel", token)
	require.Equal(t, http.StatusOK, w.Code)

	rec := s.wait(t, h.ID)
	assert.Equal(t, model.StatusError, rec.Status)
	assert.Equal(t, model.KindCanceled, rec.ErrorKind)

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/result", token)
	assert.Equal(t, http.StatusConflict, w.Code)
	_, kind = decodeError(t, w)
	assert.Equal(t, model.KindNotReady, kind)

	// Canceling a finished analysis is a no-op.
	w = s.authed(http.MethodPost, "/api/analyses/"+h.ID+"/cancel", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterTenantIsolation(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.login(t, "alice", "alice-pass")
	bob := s.login(t, "bob", "bob-pass")

	h := s.submit(t, alice, leaseText)
	s.wait(t, h.ID)

	for _, path := range []string{
		"/api/analyses/" + h.ID,
		"/api/analyses/" + h.ID + "/progress",
		"/api/analyses/" + h.ID + "/result",
		"/api/analyses/" + h.ID + "/export",
	} {
		w := s.authed(http.MethodGet, path, bob)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := s.authed(http.MethodDelete, "/api/analyses/"+h.ID, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.authed(http.MethodGet, "/api/analyses", bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analyses":[]}`, w.Body.String())

	// The same document from another tenant is analysed separately.
	other := s.submit(t, bob, leaseText)
	assert.NotEqual(t, h.ID, other.ID)
	assert.False(t, other.Deduplicated)
}

func TestRouterDelete(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice", "alice-pass")
	h := s.submit(t, token, leaseText)
	s.wait(t, h.ID)

	w := s.authed(http.MethodGet, "/api/analyses/"+h.ID+"/export?format=xlsx", token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.authed(http.MethodDelete, "/api/analyses/"+h.ID, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Analysis deleted"}`, w.Body.String())

	w = s.authed(http.MethodGet, "/api/analyses/"+h.ID, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, kind := decodeError(t, w)
	assert.Equal(t, model.KindNotFound, kind)

	w = s.authed(http.MethodDelete, "/api/analyses/"+h.ID, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.authed(http.MethodGet, "/api/analyses", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t, "alice", "alice-pass")
	w = s.authed(http.MethodGet, "/api/auth/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice","tenant":"acme"}`, w.Body.String())
}

func TestRouterOperationalRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contractlens_http_requests_total")

	// No MinerU receiver configured.
	req := httptest.NewRequest(http.MethodPost, "/api/mineru/callback", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterCallbackRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mineru.UID = "uid"
	recv := &fakeReceiver{valid: true, waiting: true}
	router := NewRouter(Deps{
		Config:   cfg,
		Manager:  pipeline.NewManager(pipeline.Options{Store: service.NewMemoryStore(0)}),
		Exporter: report.NewExporter(1, time.Minute),
		Callback: recv,
	})

	body := `{"checksum":"c","content":"{\"data_id\":\"d-1\",\"state\":\"done\"}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/mineru/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, recv.delivered, 1)
	assert.Equal(t, "d-1", recv.delivered[0].DataID)
}
