package scheduling

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/repository/memstore"
	"github.com/Ste11an/facelessflow/tasks"
)

type fakePublisher struct {
	calls   int
	results models.PublishResults
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, platforms []string) (models.PublishResults, error) {
	f.calls++
	return f.results, f.err
}

type fixture struct {
	repo  *memstore.Store
	queue *tasks.MemoryQueue
	pub   *fakePublisher
	svc   *Service
	now   time.Time
}

func newFixture() *fixture {
	f := &fixture{repo: memstore.New(), queue: tasks.NewMemoryQueue(), pub: &fakePublisher{}, now: time.Now().UTC()}
	f.svc = NewService(f.repo, f.queue, f.pub, nil)
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) video(t *testing.T, status models.VideoStatus, platform models.Platform) *models.Video {
	t.Helper()
	v := &models.Video{SeriesID: "s1", ScriptID: "sc1", OwnerID: "u1", Status: status, Platform: platform, VideoURL: "https://cdn/out.mp4"}
	if err := f.repo.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return v
}

func (f *fixture) due(t *testing.T, v *models.Video, platforms ...string) *models.Schedule {
	t.Helper()
	s := &models.Schedule{VideoID: v.ID, SeriesID: v.SeriesID, OwnerID: "u1", ScheduledTime: f.now.Add(-time.Minute), Platforms: platforms, Status: models.ScheduleScheduled}
	if err := f.repo.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return s
}

func (f *fixture) schedule(t *testing.T, id string) *models.Schedule {
	t.Helper()
	s, err := f.repo.GetSchedule(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	return s
}

func TestCreateValidates(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoReady, models.PlatformBoth)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", CreateInput{VideoID: v.ID, ScheduledTime: f.now.Add(-time.Hour)}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("past time: expected validation error, got %v", err)
	}
	if _, err := f.svc.Create(ctx, "u2", CreateInput{VideoID: v.ID, ScheduledTime: f.now.Add(time.Hour)}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("other owner: expected not found, got %v", err)
	}

	yt := f.video(t, models.VideoReady, models.PlatformYouTube)
	if _, err := f.svc.Create(ctx, "u1", CreateInput{VideoID: yt.ID, ScheduledTime: f.now.Add(time.Hour), Platforms: []string{"tiktok"}}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("untargeted platform: expected validation error, got %v", err)
	}

	s, err := f.svc.Create(ctx, "u1", CreateInput{VideoID: v.ID, ScheduledTime: f.now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if len(s.Platforms) != 2 || s.Status != models.ScheduleScheduled {
		t.Fatalf("unexpected schedule: %+v", s)
	}
}

func TestDispatchDueClaimsOnce(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoReady, models.PlatformYouTube)
	s := f.due(t, v, "youtube")
	ctx := context.Background()

	n, err := f.svc.DispatchDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("DispatchDue n=%d err=%v", n, err)
	}
	if n, _ := f.svc.DispatchDue(ctx); n != 0 {
		t.Fatalf("claimed schedule dispatched again: %d", n)
	}
	_, payload, _ := f.queue.Dequeue(ctx, 0, tasks.QueueVideoPublish)
	var task tasks.PublishPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil || task.ScheduleID != s.ID || task.VideoID != v.ID {
		t.Fatalf("unexpected task %q err=%v", payload, err)
	}

	if err := f.svc.Cancel(ctx, "u1", s.ID); !apperr.Is(err, apperr.KindPreconditionFailed) {
		t.Fatalf("cancel after dispatch: expected precondition failure, got %v", err)
	}

	f.now = f.now.Add(f.svc.Lease + time.Minute)
	if n, _ := f.svc.DispatchDue(ctx); n != 1 {
		t.Fatalf("stale claim should be dispatched again, got %d", n)
	}
}

func TestRunReleasesWhileRendering(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoProcessing, models.PlatformYouTube)
	s := f.due(t, v, "youtube")
	ctx := context.Background()
	if _, err := f.svc.DispatchDue(ctx); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	if err := f.svc.Run(ctx, s.ID); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	got := f.schedule(t, s.ID)
	if got.Status != models.ScheduleScheduled || got.DispatchedAt != nil || f.pub.calls != 0 {
		t.Fatalf("unexpected schedule: %+v calls=%d", got, f.pub.calls)
	}
}

func TestRunFailsForFailedVideo(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoFailed, models.PlatformYouTube)
	s := f.due(t, v, "youtube")

	if err := f.svc.Run(context.Background(), s.ID); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if got := f.schedule(t, s.ID); got.Status != models.ScheduleFailed || got.ErrorMessage == "" {
		t.Fatalf("unexpected schedule: %+v", got)
	}
}

func TestRunRecordsPartialFailure(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoReady, models.PlatformBoth)
	s := f.due(t, v, "youtube", "tiktok")
	f.pub.results = models.PublishResults{
		"youtube": {Status: models.PublishSucceeded, ExternalID: "YT_1"},
		"tiktok":  {Status: models.PublishFailed, ErrorKind: string(apperr.KindTransport), Error: "connection reset"},
	}

	if err := f.svc.Run(context.Background(), s.ID); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	got := f.schedule(t, s.ID)
	if got.Status != models.ScheduleFailed || got.ErrorMessage != "tiktok: connection reset" {
		t.Fatalf("unexpected schedule: status=%s message=%q", got.Status, got.ErrorMessage)
	}
	var stored models.PublishResults
	if err := json.Unmarshal(got.Results, &stored); err != nil || stored["youtube"].ExternalID != "YT_1" {
		t.Fatalf("stored results=%s err=%v", got.Results, err)
	}

	// A finished schedule is not run again.
	if err := f.svc.Run(context.Background(), s.ID); err != nil || f.pub.calls != 1 {
		t.Fatalf("rerun err=%v calls=%d", err, f.pub.calls)
	}
}

func TestRunPublishes(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoReady, models.PlatformYouTube)
	s := f.due(t, v, "youtube")
	f.pub.results = models.PublishResults{"youtube": {Status: models.PublishSucceeded, ExternalID: "YT_1"}}

	if err := f.svc.Run(context.Background(), s.ID); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if got := f.schedule(t, s.ID); got.Status != models.SchedulePublished || got.ErrorMessage != "" {
		t.Fatalf("unexpected schedule: %+v", got)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()
	v := f.video(t, models.VideoReady, models.PlatformYouTube)
	s, err := f.svc.Create(context.Background(), "u1", CreateInput{VideoID: v.ID, ScheduledTime: f.now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := f.svc.Cancel(context.Background(), "u2", s.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("other owner: expected not found, got %v", err)
	}
	if err := f.svc.Cancel(context.Background(), "u1", s.ID); err != nil {
		t.Fatalf("Cancel err=%v", err)
	}
	if _, err := f.repo.GetSchedule(context.Background(), s.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected schedule deleted, got %v", err)
	}
}

func TestDispatchRenderPolls(t *testing.T) {
	f := newFixture()
	submitted := f.video(t, models.VideoProcessing, models.PlatformYouTube)
	if err := f.repo.UpdateVideo(context.Background(), submitted.ID, repository.VideoPatch{RenderJobID: repository.Ptr("job-1")}); err != nil {
		t.Fatalf("UpdateVideo: %v", err)
	}
	f.video(t, models.VideoProcessing, models.PlatformYouTube)
	f.video(t, models.VideoReady, models.PlatformYouTube)

	n, err := f.svc.DispatchRenderPolls(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("DispatchRenderPolls n=%d err=%v", n, err)
	}
	_, payload, _ := f.queue.Dequeue(context.Background(), 0, tasks.QueueRenderPoll)
	var task tasks.RenderPollPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil || task.VideoID != submitted.ID {
		t.Fatalf("unexpected task %q err=%v", payload, err)
	}
}
