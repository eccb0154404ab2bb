package videos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository/memstore"
	"github.com/Ste11an/facelessflow/tasks"
)

type fakePipeline struct {
	polled    []string
	published []string
}

func (f *fakePipeline) PollRender(_ context.Context, videoID string) (bool, error) {
	f.polled = append(f.polled, videoID)
	return false, nil
}

func (f *fakePipeline) Publish(_ context.Context, videoID string, platforms []string) (models.PublishResults, error) {
	f.published = append(f.published, videoID)
	return models.PublishResults{"youtube": {Status: models.PublishSucceeded, ExternalID: "YT_1"}}, nil
}

type fixture struct {
	repo     *memstore.Store
	queue    *tasks.MemoryQueue
	pipeline *fakePipeline
	router   *gin.Engine
	series   *models.Series
	script   *models.Script
}

func newFixture(t *testing.T, scriptStatus models.ScriptStatus) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{repo: memstore.New(), queue: tasks.NewMemoryQueue(), pipeline: &fakePipeline{}}
	ctx := context.Background()

	f.series = &models.Series{OwnerID: "u1", Title: "Space", Platform: models.PlatformYouTube, Topic: "space", Status: models.SeriesActive}
	if err := f.repo.CreateSeries(ctx, f.series); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	f.script = &models.Script{SeriesID: f.series.ID, OwnerID: "u1", Title: "Mars", Content: "[00:00] Mars", Status: scriptStatus}
	if err := f.repo.CreateScript(ctx, f.script); err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	h := NewHandler(f.repo, f.queue, f.pipeline, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User"))
		c.Next()
	})
	r.POST("/videos", h.CreateVideo)
	r.GET("/videos/:id", h.GetVideo)
	r.POST("/videos/:id/publish", h.Publish)
	f.router = r
	return f
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) createBody(assets string) string {
	return `{"series_id":"` + f.series.ID + `","script_id":"` + f.script.ID + `","media_assets":` + assets + `}`
}

func TestCreateVideoQueuesAssembly(t *testing.T) {
	f := newFixture(t, models.ScriptApproved)

	w := f.do(http.MethodPost, "/videos", "u1", f.createBody(`["https://img/1.jpg"]`))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Video  models.Video `json:"video"`
		Queued bool         `json:"queued"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
	if !out.Queued || out.Video.Status != models.VideoPending || out.Video.Title != "Mars" || out.Video.Platform != models.PlatformYouTube {
		t.Fatalf("unexpected response %+v", out)
	}
	if n := f.queue.Len(tasks.QueueVideoAssemble); n != 1 {
		t.Fatalf("queued tasks=%d", n)
	}
}

func TestCreateVideoRejects(t *testing.T) {
	f := newFixture(t, models.ScriptDraft)

	if w := f.do(http.MethodPost, "/videos", "u1", f.createBody(`[]`)); w.Code != http.StatusBadRequest {
		t.Fatalf("no media: status=%d", w.Code)
	}
	if w := f.do(http.MethodPost, "/videos", "u1", f.createBody(`["https://img/1.jpg"]`)); w.Code != http.StatusConflict {
		t.Fatalf("draft script: status=%d", w.Code)
	}
	if w := f.do(http.MethodPost, "/videos", "u2", f.createBody(`["https://img/1.jpg"]`)); w.Code != http.StatusNotFound {
		t.Fatalf("other owner: status=%d", w.Code)
	}
	if n := f.queue.Len(tasks.QueueVideoAssemble); n != 0 {
		t.Fatalf("queued tasks=%d", n)
	}
}

func TestPublish(t *testing.T) {
	f := newFixture(t, models.ScriptApproved)
	v := &models.Video{SeriesID: f.series.ID, ScriptID: f.script.ID, OwnerID: "u1", Status: models.VideoProcessing, Platform: models.PlatformYouTube}
	if err := f.repo.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	if w := f.do(http.MethodPost, "/videos/"+v.ID+"/publish", "u1", ""); w.Code != http.StatusConflict {
		t.Fatalf("processing video: status=%d", w.Code)
	}

	ready := &models.Video{SeriesID: f.series.ID, ScriptID: f.script.ID, OwnerID: "u1", Status: models.VideoReady, Platform: models.PlatformYouTube, VideoURL: "https://cdn/out.mp4"}
	if err := f.repo.CreateVideo(context.Background(), ready); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if w := f.do(http.MethodPost, "/videos/"+ready.ID+"/publish", "u1", ""); w.Code != http.StatusAccepted {
		t.Fatalf("queued publish: status=%d body=%s", w.Code, w.Body.String())
	}
	if n := f.queue.Len(tasks.QueueVideoPublish); n != 1 {
		t.Fatalf("queued publish tasks=%d", n)
	}

	w := f.do(http.MethodPost, "/videos/"+ready.ID+"/publish", "u1", `{"wait":true}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "YT_1") || len(f.pipeline.published) != 1 {
		t.Fatalf("inline publish: status=%d body=%s", w.Code, w.Body.String())
	}
}
