// Package pipeline runs submitted documents through ingestion, analysis and
// aggregation, and tracks each analysis from pending to complete or error.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"

	"github.com/AnTengye/contractlens/analyzer"
	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/ingest"
	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/logger"
	"github.com/AnTengye/contractlens/report"
	"github.com/AnTengye/contractlens/service"
)

// Progress marks. Clause analysis moves progress linearly between
// ProgressAnalysis and ProgressClausesDone.
const (
	ProgressSubmitted   = 0
	ProgressIngesting   = 10
	ProgressExtracted   = 25
	ProgressAnalysis    = 40
	ProgressClausesDone = 75
	ProgressAggregating = 90
	ProgressComplete    = 100
)

// ErrShuttingDown is returned by Submit once Shutdown has started.
var ErrShuttingDown = eris.New("pipeline: shutting down")

// Analyzer is the clause analysis stage.
type Analyzer interface {
	Analyze(ctx context.Context, text *model.ExtractedText, fileName string, progress analyzer.ProgressFunc) (*analyzer.Analysis, error)
}

// SubmitRequest is one uploaded document.
type SubmitRequest struct {
	Tenant    string
	FileName  string
	MediaType string
	Content   []byte
}

// Handle identifies a submitted analysis.
type Handle struct {
	ID          string       `json:"id"`
	Status      model.Status `json:"status"`
	Progress    int          `json:"progress"`
	DocumentKey string       `json:"document_key"`
	// Deduplicated is set when the submission matched an analysis already in flight.
	Deduplicated bool `json:"deduplicated"`
}

// Options wires the stages a Manager runs.
type Options struct {
	Ingest        config.IngestConfig
	MaxConcurrent int
	Store         service.Store
	Extractor     ingest.Extractor
	Analyzer      Analyzer
	Aggregator    *report.Aggregator
	Clock         func() time.Time
}

// Manager owns every in-flight analysis. Each analysis runs sequentially in
// its own goroutine; a semaphore bounds how many run at once.
type Manager struct {
	ingestCfg  config.IngestConfig
	store      service.Store
	extractor  ingest.Extractor
	analyzer   Analyzer
	aggregator *report.Aggregator
	sem        *semaphore.Weighted
	now        func() time.Time

	mu       sync.Mutex
	jobs     map[string]*job
	inflight map[string]string // dedup key -> analysis ID
	closing  bool
	wg       sync.WaitGroup
}

type job struct {
	rec    model.AnalysisRecord
	doc    *model.Document
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(opts Options) *Manager {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		ingestCfg:  opts.Ingest,
		store:      opts.Store,
		extractor:  opts.Extractor,
		analyzer:   opts.Analyzer,
		aggregator: opts.Aggregator,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		now:        now,
		jobs:       make(map[string]*job),
		inflight:   make(map[string]string),
	}
}

// DocumentKey is the content hash used to recognise resubmissions.
func DocumentKey(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Submit validates the upload and starts its analysis. Validation and size
// errors are returned here and no record is created. Resubmitting a document
// the same tenant already has in flight returns the existing handle.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := ingest.Validate(req.FileName, req.MediaType, int64(len(req.Content)), m.ingestCfg)
	if err != nil {
		return nil, err
	}
	docKey := DocumentKey(req.Content)
	dedupKey := req.Tenant + "/" + docKey

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return nil, ErrShuttingDown
	}
	if id, ok := m.inflight[dedupKey]; ok && !m.jobs[id].rec.Status.Terminal() {
		j := m.jobs[id]
		analysesDeduplicated.Inc()
		logger.Info(ctx, "duplicate submission joined in-flight analysis", "analysis_id", id)
		return &Handle{ID: id, Status: j.rec.Status, Progress: j.rec.Progress, DocumentKey: docKey, Deduplicated: true}, nil
	}

	now := m.now().UTC()
	j := &job{
		rec: model.AnalysisRecord{
			ID:          uuid.NewString(),
			Tenant:      req.Tenant,
			FileName:    req.FileName,
			Format:      format,
			Size:        len(req.Content),
			DocumentKey: docKey,
			Status:      model.StatusPending,
			Progress:    ProgressSubmitted,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		doc: &model.Document{
			FileName:  req.FileName,
			MediaType: req.MediaType,
			Format:    format,
			Content:   bytes.Clone(req.Content),
		},
		key:  dedupKey,
		done: make(chan struct{}),
	}
	if err := m.store.Save(ctx, &j.rec); err != nil {
		return nil, eris.Wrap(err, "pipeline: save new analysis")
	}

	jobCtx, cancel := context.WithCancel(logger.WithAnalysis(context.WithoutCancel(ctx), j.rec.ID))
	j.cancel = cancel
	m.jobs[j.rec.ID] = j
	m.inflight[dedupKey] = j.rec.ID

	analysesSubmitted.Inc()
	analysesInFlight.Inc()
	logger.Info(jobCtx, "analysis submitted", "file", req.FileName, "format", format, "size", len(req.Content))

	m.wg.Add(1)
	go m.run(jobCtx, j)

	return &Handle{ID: j.rec.ID, Status: j.rec.Status, Progress: j.rec.Progress, DocumentKey: docKey}, nil
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer close(j.done)
	defer m.release(j)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.fail(ctx, j, model.CanceledError(model.StageIngestion))
		return
	}
	defer m.sem.Release(1)

	result, stage, err := m.execute(ctx, j)
	if err != nil {
		if ctx.Err() != nil {
			err = model.CanceledError(stage)
		}
		m.fail(ctx, j, classify(err, stage))
		return
	}
	m.complete(ctx, j, result)
}

// execute runs the three stages in order. It reports the stage it stopped in.
func (m *Manager) execute(ctx context.Context, j *job) (*model.AnalysisResult, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.StageIngestion, err
	}
	if !m.transition(ctx, j, model.StatusProcessing, ProgressIngesting) {
		return nil, model.StageIngestion, context.Canceled
	}

	start := time.Now()
	text, err := m.extractor.Extract(ctx, j.doc)
	m.releaseDocument(j)
	m.stageDone(ctx, model.StageIngestion, start, err)
	if err != nil {
		return nil, model.StageIngestion, err
	}
	m.advance(ctx, j, ProgressExtracted)

	if err := ctx.Err(); err != nil {
		return nil, model.StageAnalysis, err
	}
	m.advance(ctx, j, ProgressAnalysis)
	start = time.Now()
	analysis, err := m.analyzer.Analyze(ctx, text, j.rec.FileName, func(done, total int) {
		m.advance(ctx, j, ProgressAnalysis+(ProgressClausesDone-ProgressAnalysis)*done/total)
	})
	m.stageDone(ctx, model.StageAnalysis, start, err)
	if err != nil {
		return nil, model.StageAnalysis, err
	}

	if err := ctx.Err(); err != nil {
		return nil, model.StageAggregation, err
	}
	m.advance(ctx, j, ProgressAggregating)
	start = time.Now()
	result, err := m.aggregator.Build(report.Input{
		FileName:     j.rec.FileName,
		ContractType: analysis.ContractType,
		Language:     analysis.Language,
		Clauses:      analysis.Clauses,
		Findings:     analysis.Findings,
		Entities:     analysis.Entities,
	})
	m.stageDone(ctx, model.StageAggregation, start, err)
	if err != nil {
		return nil, model.StageAggregation, err
	}
	return result, model.StageAggregation, nil
}

func (m *Manager) stageDone(ctx context.Context, stage string, start time.Time, err error) {
	elapsed := time.Since(start)
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		logger.Warn(ctx, "stage failed", "stage", stage, "duration", elapsed, "error", err)
		return
	}
	logger.Info(ctx, "stage finished", "stage", stage, "duration", elapsed)
}

// classify makes sure a stage failure carries a kind and a stable message.
func classify(err error, stage string) *model.AnalysisError {
	var ae *model.AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	switch stage {
	case model.StageIngestion:
		return model.ExtractionError("document could not be read", err)
	case model.StageAnalysis:
		return model.ClassificationError("clauses could not be analysed", err)
	default:
		return model.NewError(model.KindAggregation, stage, "report could not be built", err)
	}
}

// transition moves a job to status. It reports false when the job already
// reached a terminal state, e.g. because it was canceled.
func (m *Manager) transition(ctx context.Context, j *job, status model.Status, progress int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.rec.Status.Terminal() {
		return false
	}
	j.rec.Status = status
	j.rec.Progress = max(j.rec.Progress, progress)
	j.rec.UpdatedAt = m.now().UTC()
	m.persist(ctx, &j.rec)
	logger.Info(ctx, "analysis status changed", "status", status, "progress", j.rec.Progress)
	return true
}

// advance raises progress. Progress never goes backwards.
func (m *Manager) advance(_ context.Context, j *job, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.rec.Status.Terminal() || progress <= j.rec.Progress {
		return
	}
	j.rec.Progress = progress
	j.rec.UpdatedAt = m.now().UTC()
}

func (m *Manager) complete(ctx context.Context, j *job, result *model.AnalysisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.rec.Status.Terminal() {
		return
	}
	j.rec.Status = model.StatusComplete
	j.rec.Progress = ProgressComplete
	j.rec.Result = result
	j.rec.UpdatedAt = m.now().UTC()
	m.persist(ctx, &j.rec)

	analysesFinished.WithLabelValues(string(model.StatusComplete), "").Inc()
	logger.Info(ctx, "analysis complete",
		"score", result.OverallRiskScore,
		"risk_level", result.RiskLevel,
		"clauses", len(result.Clauses),
	)
}

func (m *Manager) fail(ctx context.Context, j *job, err *model.AnalysisError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLocked(ctx, j, err)
}

// failLocked must be called with m.mu held.
func (m *Manager) failLocked(ctx context.Context, j *job, err *model.AnalysisError) {
	if j.rec.Status.Terminal() {
		return
	}
	j.rec.Status = model.StatusError
	j.rec.ErrorKind = err.Kind
	j.rec.ErrorMsg = err.Message
	j.rec.Result = nil
	j.rec.UpdatedAt = m.now().UTC()
	m.persist(ctx, &j.rec)

	analysesFinished.WithLabelValues(string(model.StatusError), string(err.Kind)).Inc()
	logger.Warn(ctx, "analysis failed", "kind", err.Kind, "stage", err.Stage, "error", err)
}

// persist must be called with m.mu held.
func (m *Manager) persist(ctx context.Context, rec *model.AnalysisRecord) {
	if err := m.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error(ctx, "failed to save analysis", "status", rec.Status, "error", err)
	}
}

func (m *Manager) releaseDocument(j *job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.doc.Release()
}

// release forgets a finished job.
func (m *Manager) release(j *job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.doc.Release()
	j.cancel()
	delete(m.jobs, j.rec.ID)
	if m.inflight[j.key] == j.rec.ID {
		delete(m.inflight, j.key)
	}
	analysesInFlight.Dec()
}

// Get returns the current record, including live progress.
func (m *Manager) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	m.mu.Lock()
	if j, ok := m.jobs[id]; ok {
		rec := j.rec
		m.mu.Unlock()
		return &rec, nil
	}
	m.mu.Unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get analysis %s", id)
	}
	if rec == nil {
		return nil, model.NotFoundError()
	}
	return rec, nil
}

// List returns the tenant's analyses, newest first.
func (m *Manager) List(ctx context.Context, tenant string) ([]*model.AnalysisRecord, error) {
	recs, err := m.store.GetByTenant(ctx, tenant)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list analyses")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range recs {
		if j, ok := m.jobs[r.ID]; ok {
			rec := j.rec
			recs[i] = &rec
		}
	}
	return recs, nil
}

// Progress reports 0..100. It never decreases for a given analysis.
func (m *Manager) Progress(ctx context.Context, id string) (int, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return rec.Progress, nil
}

// Result returns the finished result. Anything but a complete analysis,
// including one that failed, yields a not-ready error.
func (m *Manager) Result(ctx context.Context, id string) (*model.AnalysisResult, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusComplete || rec.Result == nil {
		return nil, model.NotReadyError(rec.Status, rec.ErrorMsg)
	}
	return rec.Result, nil
}

// Cancel stops an analysis. A pending analysis ends in the canceled error
// state at once; a processing one stops at its next stage boundary. Canceling
// a finished analysis does nothing.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		if j.rec.Status == model.StatusPending {
			m.failLocked(logger.WithAnalysis(ctx, id), j, model.CanceledError(model.StageIngestion))
			j.doc.Release()
		}
		j.cancel()
		// A canceled job no longer takes resubmissions of its document.
		if m.inflight[j.key] == id {
			delete(m.inflight, j.key)
		}
		m.mu.Unlock()
		logger.Info(ctx, "analysis cancel requested", "analysis_id", id)
		return nil
	}
	m.mu.Unlock()

	_, err := m.Get(ctx, id)
	return err
}

// Delete cancels the analysis if it is running and removes its record.
// It returns the removed record.
func (m *Manager) Delete(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	j, running := m.jobs[id]
	m.mu.Unlock()
	if running {
		if err := m.Cancel(ctx, id); err != nil {
			return nil, err
		}
		<-j.done
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return nil, eris.Wrapf(err, "pipeline: delete analysis %s", id)
	}
	return rec, nil
}

// Wait blocks until the analysis is terminal or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if ok {
		select {
		case <-j.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Get(ctx, id)
}

// Shutdown stops accepting work, cancels every in-flight analysis and waits
// for their goroutines to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "pipeline: shutdown")
	}
}
