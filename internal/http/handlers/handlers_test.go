package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"storyboard/internal/assetstore"
	"storyboard/internal/domain"
	"storyboard/internal/http/handlers"
	"storyboard/internal/http/httpapi"
	"storyboard/internal/infra"
	"storyboard/internal/jobstore"
	"storyboard/internal/providers/image"
	"storyboard/internal/providers/video"
	"storyboard/internal/sqlinline"
	"storyboard/internal/usecase"
)

// jobResponse mirrors the handler package's response body for decoding.
type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// stubDB accepts job writes and serves the story lookup.
type stubDB struct {
	mu      sync.Mutex
	stories map[string]string
}

func newStubDB() *stubDB {
	return &stubDB{stories: map[string]string{}}
}

func (s *stubDB) addStory(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[id] = title
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	switch query {
	case sqlinline.QInsertJob, sqlinline.QUpdateJobProgress:
		return pgconn.CommandTag{}, nil
	default:
		return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
	}
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch query {
	case sqlinline.QSelectStoryByID:
		id, _ := args[0].(string)
		s.mu.Lock()
		title, ok := s.stories[id]
		s.mu.Unlock()
		if !ok {
			return stubRow{}
		}
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = id
			*(dest[1].(*string)) = title
			*(dest[2].(*time.Time)) = time.Now().UTC()
			return nil
		}}
	case sqlinline.QInsertStory:
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = uuid.NewString()
			return nil
		}}
	default:
		return stubRow{}
	}
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unsupported query: %s", query)
}

// stubPersister keeps persisted assets in memory.
type stubPersister struct {
	mu     sync.Mutex
	assets map[string]*domain.Asset
}

func newStubPersister() *stubPersister {
	return &stubPersister{assets: map[string]*domain.Asset{}}
}

func (p *stubPersister) FindBySlot(_ context.Context, _ string, kind domain.AssetKind, ordinal int) (*domain.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if asset, ok := p.assets[fmt.Sprintf("%s/%d", kind, ordinal)]; ok {
		clone := *asset
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (p *stubPersister) Persist(_ context.Context, req assetstore.PersistRequest) (*domain.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	asset := &domain.Asset{
		ID:         uuid.NewString(),
		StoryID:    req.StoryID,
		Kind:       req.Kind,
		Ordinal:    req.Ordinal,
		StorageKey: fmt.Sprintf("stories/%s/%s/%d.png", req.StoryID, req.Kind, req.Ordinal),
		MIME:       req.SourceMIME,
	}
	p.assets[fmt.Sprintf("%s/%d", req.Kind, req.Ordinal)] = asset
	clone := *asset
	return &clone, nil
}

func (p *stubPersister) ResolveURL(key string) string {
	return "http://files.test/" + key
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req image.GenerateRequest) (*image.Result, error) {
	return &image.Result{URL: "http://provider.test/" + req.RequestID + ".png", MIME: "image/png"}, nil
}

type stubTasks struct{}

func (stubTasks) CreateTask(_ context.Context, req video.CreateTaskRequest) (string, error) {
	return "task-" + req.RequestID, nil
}

func (stubTasks) WaitForTask(_ context.Context, taskID string, _ video.WaitOptions) (*video.TaskResult, error) {
	return &video.TaskResult{VideoURL: "http://provider.test/" + taskID + ".mp4"}, nil
}

func newTestApp(t *testing.T) (*handlers.App, *stubDB, *stubPersister, http.Handler) {
	t.Helper()
	db := newStubDB()
	logger := infra.Logger(zerolog.New(io.Discard))
	persister := newStubPersister()
	app := &handlers.App{
		SQL:         db,
		Jobs:        jobstore.New(db, logger),
		RefImages:   usecase.NewReferenceImages(persister, stubGenerator{}, logger, 2),
		FirstFrames: usecase.NewFirstFrames(persister, stubGenerator{}, logger, 2),
		VideoClips:  usecase.NewVideoClips(persister, stubTasks{}, logger, 2, video.WaitOptions{}),
		Logger:      logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{})
	return app, db, persister, router
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func awaitTerminalJob(t *testing.T, router http.Handler, jobID string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d, body %s", rec.Code, rec.Body.String())
		}
		var job domain.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return domain.Job{}
}

func TestGenerateReferenceImagesFlow(t *testing.T) {
	_, db, _, router := newTestApp(t)
	storyID := uuid.NewString()
	db.addStory(storyID, "demo")

	rec := postJSON(t, router, "/v1/stories/"+storyID+"/generate/reference-images", map[string]any{
		"items": []map[string]any{
			{"ordinal": 1, "name": "hero", "category": "character", "prompt": "a knight"},
			{"ordinal": 2, "name": "castle", "category": "location", "prompt": "a castle"},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Status != string(domain.JobStatusQueued) {
		t.Fatalf("response = %+v", resp)
	}

	job := awaitTerminalJob(t, router, resp.JobID)
	if job.Status != domain.JobStatusDone {
		t.Fatalf("job status = %q, want done", job.Status)
	}
	want := domain.Summary{Total: 2, OK: 2}
	if job.Snapshot.Summary != want {
		t.Fatalf("summary = %+v, want %+v", job.Snapshot.Summary, want)
	}
	for _, item := range job.Snapshot.Items {
		if item.Status != domain.ItemStatusSuccess || item.URL == "" {
			t.Fatalf("item = %+v", item)
		}
	}
}

func TestGenerateVideoClipsInvalidDurationEndsJobInError(t *testing.T) {
	_, db, persister, router := newTestApp(t)
	storyID := uuid.NewString()
	db.addStory(storyID, "demo")
	_, _ = persister.Persist(context.Background(), assetstore.PersistRequest{
		StoryID: storyID, Kind: domain.AssetKindFirstFrame, Ordinal: 1, SourceMIME: "image/png",
	})

	rec := postJSON(t, router, "/v1/stories/"+storyID+"/generate/video-clips", map[string]any{
		"items": []map[string]any{
			{"ordinal": 1, "prompt": "pan", "frame_ordinal": 1, "duration_seconds": 99},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	job := awaitTerminalJob(t, router, resp.JobID)
	if job.Status != domain.JobStatusError {
		t.Fatalf("job status = %q, want error", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "duration") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	_, db, _, router := newTestApp(t)
	storyID := uuid.NewString()
	db.addStory(storyID, "demo")

	t.Run("invalid story uuid", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/stories/not-a-uuid/generate/reference-images", map[string]any{
			"items": []map[string]any{{"ordinal": 1, "prompt": "x"}},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("unknown story", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/stories/"+uuid.NewString()+"/generate/reference-images", map[string]any{
			"items": []map[string]any{{"ordinal": 1, "prompt": "x"}},
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/stories/"+storyID+"/generate/reference-images", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/stories/"+storyID+"/generate/reference-images", map[string]any{
			"items": []map[string]any{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestGetJobUnknown(t *testing.T) {
	_, _, _, router := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateStory(t *testing.T) {
	_, _, _, router := newTestApp(t)

	rec := postJSON(t, router, "/v1/stories", map[string]any{"title": "My Story"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == "" || resp["title"] != "My Story" {
		t.Fatalf("response = %+v", resp)
	}

	rec = postJSON(t, router, "/v1/stories", map[string]any{"title": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank title status = %d", rec.Code)
	}
}

func TestJobEventsStreamsUntilTerminal(t *testing.T) {
	app, db, _, router := newTestApp(t)
	storyID := uuid.NewString()
	db.addStory(storyID, "demo")

	job, err := app.Jobs.Create(context.Background(), storyID, domain.JobTypeReferenceImages, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	go func() {
		_ = app.Jobs.Run(context.Background(), job.ID, func(ctx context.Context, onItem jobstore.OnItem) (domain.Snapshot, error) {
			res := domain.ItemResult{Ordinal: 1, Status: domain.ItemStatusSuccess, URL: "http://x/1.png"}
			onItem(res)
			snap := domain.Snapshot{Summary: domain.Summary{Total: 1}}
			snap.Fold(res)
			return snap, nil
		})
	}()

	resp, err := http.Get(srv.URL + "/v1/jobs/" + job.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	events := strings.Count(string(body), "event: snapshot")
	if events == 0 {
		t.Fatalf("no snapshot events in stream: %q", body)
	}
	if !strings.Contains(string(body), `"status":"done"`) {
		t.Fatalf("stream did not end with terminal snapshot: %q", body)
	}
}

func TestJobSocketStreamsUntilClose(t *testing.T) {
	app, db, _, router := newTestApp(t)
	storyID := uuid.NewString()
	db.addStory(storyID, "demo")

	job, err := app.Jobs.Create(context.Background(), storyID, domain.JobTypeReferenceImages, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	go func() {
		_ = app.Jobs.Run(context.Background(), job.ID, func(ctx context.Context, onItem jobstore.OnItem) (domain.Snapshot, error) {
			res := domain.ItemResult{Ordinal: 1, Status: domain.ItemStatusSuccess}
			onItem(res)
			snap := domain.Snapshot{Summary: domain.Summary{Total: 1}}
			snap.Fold(res)
			return snap, nil
		})
	}()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/jobs/" + job.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var last domain.Job
	for {
		var snapshot domain.Job
		if err := conn.ReadJSON(&snapshot); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("read snapshot: %v", err)
		}
		last = snapshot
	}
	if !last.Status.Terminal() {
		t.Fatalf("last snapshot = %+v, want terminal", last)
	}
}
