package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/pkg/logger"
)

// MineruService drives the MinerU document extraction API. It is used for
// legacy DOC files and scanned PDFs that have no text layer.
type MineruService struct {
	config     *config.MineruConfig
	httpClient *http.Client

	mu      sync.Mutex
	waiters map[string]chan CallbackContent
}

// MineruTaskRequest represents the request to create an extraction task
type MineruTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
	Callback     string `json:"callback,omitempty"`
	Seed         string `json:"seed,omitempty"`
	DataID       string `json:"data_id,omitempty"`
}

// MineruTaskResponse represents the response from task creation
type MineruTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// MineruTaskStatusResponse represents the task status query response
type MineruTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID          string `json:"task_id"`
		DataID          string `json:"data_id"`
		State           string `json:"state"` // pending, running, done, failed, converting
		FullZipURL      string `json:"full_zip_url,omitempty"`
		ErrorMsg        string `json:"err_msg,omitempty"`
		ExtractProgress struct {
			ExtractedPages int `json:"extracted_pages"`
			TotalPages     int `json:"total_pages"`
		} `json:"extract_progress,omitempty"`
	} `json:"data"`
}

// CallbackContent is the decoded content field of a MinerU callback.
type CallbackContent struct {
	TaskID     string `json:"task_id"`
	DataID     string `json:"data_id"`
	State      string `json:"state"`
	FullZipURL string `json:"full_zip_url"`
	ErrorMsg   string `json:"err_msg"`
}

// ContentItem is one block of content_list.json.
type ContentItem struct {
	Type      string `json:"type"` // text, title, list, table, image, equation
	Text      string `json:"text"`
	TextLevel int    `json:"text_level,omitempty"`
	TableBody string `json:"table_body,omitempty"`
	PageIdx   int    `json:"page_idx"`
}

func NewMineruService(cfg *config.MineruConfig) *MineruService {
	return &MineruService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		waiters: make(map[string]chan CallbackContent),
	}
}

// CreateTask creates a new extraction task and returns its ID.
func (s *MineruService) CreateTask(ctx context.Context, fileURL, dataID string) (string, error) {
	reqBody := MineruTaskRequest{
		URL:          fileURL,
		ModelVersion: s.config.ModelVersion,
		DataID:       dataID,
	}
	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "mineru: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract/task", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "mineru: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var result MineruTaskResponse
	if err := s.do(req, &result); err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", eris.Errorf("mineru: api error: %s", result.Message)
	}
	return result.Data.TaskID, nil
}

// GetTaskStatus queries the status of a task
func (s *MineruService) GetTaskStatus(ctx context.Context, taskID string) (*MineruTaskStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIURL+"/extract/task/"+taskID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mineru: create request")
	}

	var result MineruTaskStatusResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, eris.Errorf("mineru: api error: %s", result.Message)
	}
	return &result, nil
}

func (s *MineruService) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "mineru: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "mineru: read response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "mineru: parse response (status %d)", resp.StatusCode)
	}
	return nil
}

// Await blocks until the task finishes and returns the result archive URL.
// It polls the status endpoint and also accepts an early callback delivered
// through Deliver.
func (s *MineruService) Await(ctx context.Context, taskID, dataID string) (string, error) {
	ch := s.register(dataID)
	defer s.unregister(dataID)

	interval := time.Duration(s.config.PollIntervalS) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.config.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case cb := <-ch:
			switch cb.State {
			case "done":
				if cb.FullZipURL != "" {
					return cb.FullZipURL, nil
				}
			case "failed":
				return "", eris.Errorf("mineru: task failed: %s", cb.ErrorMsg)
			}
		case <-ticker.C:
		}

		status, err := s.GetTaskStatus(ctx, taskID)
		if err != nil {
			logger.Warn(ctx, "mineru poll failed", "task_id", taskID, "attempt", attempt, "error", err)
			continue
		}

		switch status.Data.State {
		case "done":
			if status.Data.FullZipURL == "" {
				return "", eris.New("mineru: task finished without a result archive")
			}
			return status.Data.FullZipURL, nil
		case "failed":
			return "", eris.Errorf("mineru: task failed: %s", status.Data.ErrorMsg)
		case "running":
			p := status.Data.ExtractProgress
			logger.Debug(ctx, "mineru task running", "task_id", taskID, "pages", p.ExtractedPages, "total_pages", p.TotalPages)
		}
	}
	return "", eris.New("mineru: task polling timeout")
}

func (s *MineruService) register(dataID string) chan CallbackContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan CallbackContent, 1)
	s.waiters[dataID] = ch
	return ch
}

func (s *MineruService) unregister(dataID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, dataID)
}

// Deliver hands a callback to the extraction waiting on dataID. It reports
// whether anyone was waiting.
func (s *MineruService) Deliver(content CallbackContent) bool {
	s.mu.Lock()
	ch, ok := s.waiters[content.DataID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- content:
	default:
	}
	return true
}

// VerifyCallback verifies the callback checksum
func (s *MineruService) VerifyCallback(checksum, content string, uid string) bool {
	// Checksum = SHA256(uid + seed + content)
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// FetchContentList downloads the result archive and decodes content_list.json.
func (s *MineruService) FetchContentList(ctx context.Context, zipURL string) ([]ContentItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mineru: create download request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mineru: download archive")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("mineru: download archive: status %d", resp.StatusCode)
	}

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mineru: read archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, eris.Wrap(err, "mineru: open archive")
	}

	for _, file := range zr.File {
		if !strings.HasSuffix(file.Name, "content_list.json") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "mineru: open %s", file.Name)
		}
		var items []ContentItem
		err = json.NewDecoder(rc).Decode(&items)
		rc.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "mineru: parse %s", file.Name)
		}
		return items, nil
	}
	return nil, eris.New("mineru: no content_list.json in archive")
}
