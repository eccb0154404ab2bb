package assembly

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/publish"
)

// Publish uploads a ready video to platforms, or to every platform its series
// targets when platforms is empty. Platforms that already published are
// skipped. The returned map holds the latest outcome of every platform tried
// so far; one platform failing does not stop the others. The video moves to
// published once all its targets have succeeded.
func (o *Orchestrator) Publish(ctx context.Context, videoID string, platforms []string) (models.PublishResults, error) {
	video, err := o.Repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.Status != models.VideoReady && video.Status != models.VideoPublished {
		return nil, apperr.Precondition("video is %s, only ready videos can be published", video.Status)
	}
	if video.VideoURL == "" {
		return nil, apperr.Precondition("video has no rendered file yet")
	}

	targets := video.Platform.Targets()
	if len(platforms) == 0 {
		platforms = targets
	}
	for _, p := range platforms {
		if !slices.Contains(targets, p) {
			return nil, apperr.Validation("video does not target platform %q", p)
		}
		if _, ok := o.Publishers.Get(p); !ok {
			return nil, apperr.Validation("no publisher configured for %q", p)
		}
	}

	results, err := video.Outcomes()
	if err != nil {
		return nil, err
	}
	logger := o.log().With(zap.String("video_id", video.ID), zap.String("owner_id", video.OwnerID))
	req := publish.Request{
		UserID:      video.OwnerID,
		VideoID:     video.ID,
		Title:       video.Title,
		Description: video.Description,
		Tags:        video.Tags,
		VideoURL:    video.VideoURL,
	}

	attempted := models.PublishResults{}
	for _, p := range platforms {
		if results[p].Status == models.PublishSucceeded {
			continue
		}
		pub, _ := o.Publishers.Get(p)
		receipt, err := pub.Publish(ctx, req)
		if err != nil {
			attempted[p] = models.PublishOutcome{
				Status:    models.PublishFailed,
				ErrorKind: string(apperr.KindOf(err)),
				Error:     apperr.Message(err),
				At:        o.now(),
			}
			logger.Warn("publish failed", zap.String("platform", p), zap.Error(err))
			continue
		}
		attempted[p] = models.PublishOutcome{
			Status:     models.PublishSucceeded,
			ExternalID: receipt.ExternalID,
			URL:        receipt.URL,
			At:         o.now(),
		}
		logger.Info("published", zap.String("platform", p), zap.String("external_id", receipt.ExternalID))
	}
	if len(attempted) == 0 {
		return results, nil
	}

	// Merge in the store so a concurrent publish of another platform keeps
	// its outcome.
	ctx, cancel := detached(ctx)
	defer cancel()
	updated, err := o.Repo.MergePublishResults(ctx, video.ID, attempted, targets)
	if err != nil {
		return nil, err
	}
	if updated.Status == models.VideoPublished && video.Status != models.VideoPublished {
		logger.Info("video published to every target")
	}
	return updated.Outcomes()
}

// Failed lists the platforms in results whose latest attempt failed.
func Failed(results models.PublishResults, platforms []string) []string {
	var out []string
	for _, p := range platforms {
		if results[p].Status != models.PublishSucceeded {
			out = append(out, p)
		}
	}
	return out
}
