package worker

import (
	"context"
	"testing"

	"github.com/Ste11an/facelessflow/assembly"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository/memstore"
)

func TestHandleAssembleDropsUnknownVideo(t *testing.T) {
	h := &Handlers{Orchestrator: assembly.New(memstore.New(), nil, nil, nil, nil, nil, assembly.Options{})}
	if err := h.HandleAssemble(context.Background(), `{"video_id":"missing"}`); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := h.HandleAssemble(context.Background(), `not json`); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHandleRenderPollIgnoresFinishedVideo(t *testing.T) {
	repo := memstore.New()
	v := &models.Video{SeriesID: "s", ScriptID: "sc", OwnerID: "u", Status: models.VideoReady, Platform: models.PlatformYouTube}
	if err := repo.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	h := &Handlers{Orchestrator: assembly.New(repo, nil, nil, nil, nil, nil, assembly.Options{})}
	if err := h.HandleRenderPoll(context.Background(), `{"video_id":"`+v.ID+`"}`); err != nil {
		t.Fatalf("err=%v", err)
	}

	err := h.HandlePublish(context.Background(), `{"video_id":"`+v.ID+`"}`)
	if !apperr.Is(err, apperr.KindPreconditionFailed) {
		t.Fatalf("publish without a rendered file: expected precondition failure, got %v", err)
	}
}
