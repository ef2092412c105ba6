// Package video wraps the provider's long-running video generation API:
// a task is created, then polled until it reaches a terminal status.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// TaskStatus enumerates the provider task lifecycle.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusExpired   TaskStatus = "expired"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task will never change status again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusExpired, TaskStatusCancelled:
		return true
	}
	return false
}

// CreateTaskRequest carries the inputs for one video generation task.
type CreateTaskRequest struct {
	Prompt          string
	ImageURL        string
	DurationSeconds int
	RequestID       string
}

// Task is the polled provider-side state of a long-running generation.
type Task struct {
	ID           string
	Status       TaskStatus
	VideoURL     string
	LastFrameURL string
	Error        string
}

// TaskResult is the terminal-success outcome. LastFrameURL is an optional
// auxiliary still used to derive a thumbnail.
type TaskResult struct {
	VideoURL     string
	LastFrameURL string
}

// WaitOptions tunes WaitForTask. Zero values take the client defaults.
type WaitOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// TaskRunner is the asynchronous generation capability consumed by the use
// cases.
type TaskRunner interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (string, error)
	WaitForTask(ctx context.Context, taskID string, opts WaitOptions) (*TaskResult, error)
}

// Options configures the video task client.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// Client performs HTTP calls against the provider's task API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	waitTimeout  time.Duration
}

type createTaskRequest struct {
	Prompt          string `json:"prompt"`
	ImageURL        string `json:"image_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

type taskResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	VideoURL     string `json:"video_url,omitempty"`
	LastFrameURL string `json:"last_frame_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 1500 * time.Millisecond
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Minute
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// CreateTask submits a generation task and returns the provider task id.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.ImageURL) == "" {
		return "", errors.New("video: prompt or image is required")
	}
	endpoint := fmt.Sprintf("%s/models/%s:createTask", c.baseURL, c.model)
	var decoded taskResponse
	if err := c.do(ctx, http.MethodPost, endpoint, createTaskRequest{
		Prompt:          req.Prompt,
		ImageURL:        req.ImageURL,
		DurationSeconds: req.DurationSeconds,
		RequestID:       req.RequestID,
	}, &decoded); err != nil {
		return "", err
	}
	if decoded.TaskID == "" {
		return "", &domain.ProviderError{Msg: "empty task id"}
	}
	c.logger.Debug().Str("task_id", decoded.TaskID).Str("model", c.model).Msg("video: task created")
	return decoded.TaskID, nil
}

// GetTask fetches the current task state. Polls for one task are always
// sequential; WaitForTask never overlaps them.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf("%s/tasks/%s", c.baseURL, taskID)
	var decoded taskResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return nil, err
	}
	return &Task{
		ID:           decoded.TaskID,
		Status:       TaskStatus(decoded.Status),
		VideoURL:     decoded.VideoURL,
		LastFrameURL: decoded.LastFrameURL,
		Error:        decoded.Error,
	}, nil
}

// WaitForTask polls until the task reaches a terminal status. The deadline
// is wall-clock from the first call and re-checked every iteration;
// exceeding it yields domain.TimeoutError, which callers can tell apart
// from a provider-side failure. Cancellation is observed at the top of each
// iteration and yields domain.CancelledError without further polling.
func (c *Client) WaitForTask(ctx context.Context, taskID string, opts WaitOptions) (*TaskResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.waitTimeout
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = c.pollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, &domain.CancelledError{TaskID: taskID}
		default:
		}
		if time.Now().After(deadline) {
			return nil, &domain.TimeoutError{TaskID: taskID, After: timeout}
		}

		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case TaskStatusSucceeded:
			if task.VideoURL == "" {
				return nil, &domain.ProviderError{Msg: "task " + taskID + " succeeded without video url"}
			}
			return &TaskResult{VideoURL: task.VideoURL, LastFrameURL: task.LastFrameURL}, nil
		case TaskStatusFailed, TaskStatusExpired, TaskStatusCancelled:
			msg := task.Error
			if msg == "" {
				msg = "task " + taskID + " " + string(task.Status)
			}
			return nil, &domain.ProviderError{Msg: msg, Code: string(task.Status)}
		}

		select {
		case <-ctx.Done():
			return nil, &domain.CancelledError{TaskID: taskID}
		case <-time.After(interval):
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("video: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("video: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("video: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("video: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return &domain.ProviderError{Msg: detail.Error.Message, Code: detail.Error.Code}
		}
		return &domain.ProviderError{Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("video: decode response: %w", err)
		}
	}
	return nil
}

var _ TaskRunner = (*Client)(nil)
