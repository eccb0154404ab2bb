// Package memstore is an in-memory Repository for tests and database-less dev runs.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	series    map[string]models.Series
	scripts   map[string]models.Script
	videos    map[string]models.Video
	schedules map[string]models.Schedule
	apiKeys   map[string]models.APIKeySet
	analytics []models.Analytics
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		series:    map[string]models.Series{},
		scripts:   map[string]models.Script{},
		videos:    map[string]models.Video{},
		schedules: map[string]models.Schedule{},
		apiKeys:   map[string]models.APIKeySet{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func (s *Store) CreateSeries(_ context.Context, item *models.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = newID(item.ID)
	item.CreatedAt, item.UpdatedAt = s.now(), s.now()
	s.series[item.ID] = *item
	return nil
}

func (s *Store) GetSeries(_ context.Context, ownerID, id string) (*models.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.series[id]
	if !ok || item.OwnerID != ownerID {
		return nil, apperr.NotFound("series")
	}
	return &item, nil
}

func (s *Store) ListSeries(_ context.Context, ownerID string) ([]models.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Series
	for _, item := range s.series {
		if item.OwnerID != ownerID {
			continue
		}
		for _, v := range s.videos {
			if v.SeriesID == item.ID {
				item.VideoCount++
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateSeries(_ context.Context, item *models.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.series[item.ID]
	if !ok || cur.OwnerID != item.OwnerID {
		return apperr.NotFound("series")
	}
	cur.Title, cur.Description, cur.ContentPrompt, cur.Status = item.Title, item.Description, item.ContentPrompt, item.Status
	cur.Platform, cur.Topic = item.Platform, item.Topic
	cur.UpdatedAt = s.now()
	s.series[item.ID] = cur
	return nil
}

func (s *Store) CreateScript(_ context.Context, item *models.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = newID(item.ID)
	item.CreatedAt, item.UpdatedAt = s.now(), s.now()
	s.scripts[item.ID] = *item
	return nil
}

func (s *Store) GetScript(_ context.Context, id string) (*models.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.scripts[id]
	if !ok {
		return nil, apperr.NotFound("script")
	}
	return &item, nil
}

func (s *Store) ListScripts(_ context.Context, ownerID, seriesID string) ([]models.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Script
	for _, item := range s.scripts {
		if item.OwnerID == ownerID && (seriesID == "" || item.SeriesID == seriesID) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateScript(_ context.Context, item *models.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.scripts[item.ID]
	if !ok || cur.OwnerID != item.OwnerID {
		return apperr.NotFound("script")
	}
	cur.Title, cur.Content, cur.Status = item.Title, item.Content, item.Status
	cur.UpdatedAt = s.now()
	s.scripts[item.ID] = cur
	return nil
}

func (s *Store) CreateVideo(_ context.Context, item *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = newID(item.ID)
	if item.Status == "" {
		item.Status = models.VideoPending
	}
	item.CreatedAt, item.UpdatedAt = s.now(), s.now()
	s.videos[item.ID] = *item
	return nil
}

func (s *Store) GetVideo(_ context.Context, id string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.videos[id]
	if !ok {
		return nil, apperr.NotFound("video")
	}
	return &item, nil
}

func (s *Store) GetVideoByRenderJob(_ context.Context, renderJobID string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.videos {
		if renderJobID != "" && item.RenderJobID == renderJobID {
			return &item, nil
		}
	}
	return nil, apperr.NotFound("video")
}

func (s *Store) ListVideos(_ context.Context, ownerID, seriesID string) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, item := range s.videos {
		if item.OwnerID == ownerID && (seriesID == "" || item.SeriesID == seriesID) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListVideosByStatus(_ context.Context, status models.VideoStatus, limit int) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, item := range s.videos {
		if item.Status == status {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransitionVideo(_ context.Context, id string, from []models.VideoStatus, to models.VideoStatus, patch repository.VideoPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.videos[id]
	if !ok || !slices.Contains(from, item.Status) {
		return false, nil
	}
	patch.Apply(&item)
	item.Status = to
	item.UpdatedAt = s.now()
	s.videos[id] = item
	return true, nil
}

func (s *Store) UpdateVideo(_ context.Context, id string, patch repository.VideoPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.videos[id]
	if !ok {
		return apperr.NotFound("video")
	}
	patch.Apply(&item)
	item.UpdatedAt = s.now()
	s.videos[id] = item
	return nil
}

func (s *Store) MergePublishResults(_ context.Context, id string, outcomes models.PublishResults, targets []string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.videos[id]
	if !ok {
		return nil, apperr.NotFound("video")
	}
	merged, err := item.Outcomes()
	if err != nil {
		return nil, err
	}
	merged.Merge(outcomes)
	if err := item.SetOutcomes(merged); err != nil {
		return nil, err
	}
	if item.Status == models.VideoReady && merged.AllPublished(targets) {
		item.Status = models.VideoPublished
	}
	item.UpdatedAt = s.now()
	s.videos[id] = item
	return &item, nil
}

func (s *Store) CreateSchedule(_ context.Context, item *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = newID(item.ID)
	if item.Status == "" {
		item.Status = models.ScheduleScheduled
	}
	item.CreatedAt, item.UpdatedAt = s.now(), s.now()
	s.schedules[item.ID] = *item
	return nil
}

func (s *Store) GetSchedule(_ context.Context, id string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.schedules[id]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	return &item, nil
}

func (s *Store) ListSchedules(_ context.Context, ownerID string) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Schedule
	for _, item := range s.schedules {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func claimable(item models.Schedule, now, staleBefore time.Time) bool {
	return item.Status == models.ScheduleScheduled &&
		!item.ScheduledTime.After(now) &&
		(item.DispatchedAt == nil || item.DispatchedAt.Before(staleBefore))
}

func (s *Store) ListDueSchedules(_ context.Context, now, staleBefore time.Time, limit int) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Schedule
	for _, item := range s.schedules {
		if claimable(item, now, staleBefore) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ClaimSchedule(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.schedules[id]
	if !ok || item.Status != models.ScheduleScheduled {
		return false, nil
	}
	if item.DispatchedAt != nil && !item.DispatchedAt.Before(staleBefore) {
		return false, nil
	}
	at := now
	item.DispatchedAt = &at
	s.schedules[id] = item
	return true, nil
}

func (s *Store) ReleaseSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.schedules[id]
	if !ok {
		return apperr.NotFound("schedule")
	}
	item.DispatchedAt = nil
	s.schedules[id] = item
	return nil
}

func (s *Store) TransitionSchedule(_ context.Context, id string, from, to models.ScheduleStatus, patch repository.SchedulePatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.schedules[id]
	if !ok || item.Status != from {
		return false, nil
	}
	patch.Apply(&item)
	item.Status = to
	item.DispatchedAt = nil
	item.UpdatedAt = s.now()
	s.schedules[id] = item
	return true, nil
}

func (s *Store) DeleteSchedule(_ context.Context, ownerID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.schedules[id]
	if !ok || item.OwnerID != ownerID || item.Status != models.ScheduleScheduled || item.DispatchedAt != nil {
		return false, nil
	}
	delete(s.schedules, id)
	return true, nil
}

func (s *Store) GetAPIKeys(_ context.Context, userID string) (*models.APIKeySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.apiKeys[userID]
	if !ok {
		return nil, apperr.NotFound("api keys")
	}
	return &item, nil
}

func (s *Store) UpsertAPIKeys(_ context.Context, set *models.APIKeySet) error {
	if set == nil || set.UserID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set.UpdatedAt = s.now()
	cp := *set
	cp.Keys = append(cp.Keys[:0:0], set.Keys...)
	s.apiKeys[set.UserID] = cp
	return nil
}

// AddAnalytics seeds analytics rows; the platforms' metrics feed is external.
func (s *Store) AddAnalytics(rows ...models.Analytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = append(s.analytics, rows...)
}

func (s *Store) ListAnalytics(_ context.Context, ownerID, videoID string) ([]models.Analytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Analytics
	for _, row := range s.analytics {
		if row.OwnerID == ownerID && (videoID == "" || row.VideoID == videoID) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
