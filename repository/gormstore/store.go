package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return err
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 || limit > 500 {
		return def
	}
	return limit
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- series ---------------------------------------------------------------

func (s *Store) CreateSeries(ctx context.Context, item *models.Series) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetSeries(ctx context.Context, ownerID, id string) (*models.Series, error) {
	var item models.Series
	if err := s.db.WithContext(ctx).First(&item, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		return nil, notFound(err, "series")
	}
	return &item, nil
}

func (s *Store) ListSeries(ctx context.Context, ownerID string) ([]models.Series, error) {
	var items []models.Series
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	var counts []struct {
		SeriesID string
		Count    int
	}
	err := s.db.WithContext(ctx).Model(&models.Video{}).
		Select("series_id, count(*) AS count").
		Where("series_id IN ?", ids).
		Group("series_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.SeriesID] = c.Count
	}
	for i := range items {
		items[i].VideoCount = byID[items[i].ID]
	}
	return items, nil
}

func (s *Store) UpdateSeries(ctx context.Context, item *models.Series) error {
	res := s.db.WithContext(ctx).Model(&models.Series{}).
		Where("id = ? AND owner_id = ?", item.ID, item.OwnerID).
		Updates(map[string]any{
			"title":          item.Title,
			"description":    item.Description,
			"platform":       item.Platform,
			"topic":          item.Topic,
			"content_prompt": item.ContentPrompt,
			"status":         item.Status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("series")
	}
	return nil
}

// --- scripts --------------------------------------------------------------

func (s *Store) CreateScript(ctx context.Context, item *models.Script) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetScript(ctx context.Context, id string) (*models.Script, error) {
	var item models.Script
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "script")
	}
	return &item, nil
}

func (s *Store) ListScripts(ctx context.Context, ownerID, seriesID string) ([]models.Script, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if seriesID != "" {
		query = query.Where("series_id = ?", seriesID)
	}
	var items []models.Script
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateScript(ctx context.Context, item *models.Script) error {
	res := s.db.WithContext(ctx).Model(&models.Script{}).
		Where("id = ? AND owner_id = ?", item.ID, item.OwnerID).
		Updates(map[string]any{
			"title":   item.Title,
			"content": item.Content,
			"status":  item.Status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("script")
	}
	return nil
}

// --- videos ---------------------------------------------------------------

func (s *Store) CreateVideo(ctx context.Context, item *models.Video) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var item models.Video
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "video")
	}
	return &item, nil
}

func (s *Store) GetVideoByRenderJob(ctx context.Context, renderJobID string) (*models.Video, error) {
	var item models.Video
	if err := s.db.WithContext(ctx).First(&item, "render_job_id = ?", renderJobID).Error; err != nil {
		return nil, notFound(err, "video")
	}
	return &item, nil
}

func (s *Store) ListVideos(ctx context.Context, ownerID, seriesID string) ([]models.Video, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if seriesID != "" {
		query = query.Where("series_id = ?", seriesID)
	}
	var items []models.Video
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListVideosByStatus(ctx context.Context, status models.VideoStatus, limit int) ([]models.Video, error) {
	var items []models.Video
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at ASC").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) TransitionVideo(ctx context.Context, id string, from []models.VideoStatus, to models.VideoStatus, patch repository.VideoPatch) (bool, error) {
	cols := patch.Columns()
	cols["status"] = to
	res := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UpdateVideo(ctx context.Context, id string, patch repository.VideoPatch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("video")
	}
	return nil
}

// MergePublishResults locks the row so concurrent publishes of one video
// serialize their writes.
func (s *Store) MergePublishResults(ctx context.Context, id string, outcomes models.PublishResults, targets []string) (*models.Video, error) {
	var item models.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", id).Error; err != nil {
			return notFound(err, "video")
		}
		merged, err := item.Outcomes()
		if err != nil {
			return err
		}
		merged.Merge(outcomes)
		if err := item.SetOutcomes(merged); err != nil {
			return err
		}
		cols := map[string]any{"publish_results": item.PublishResults}
		if item.Status == models.VideoReady && merged.AllPublished(targets) {
			cols["status"] = models.VideoPublished
			item.Status = models.VideoPublished
		}
		return tx.Model(&models.Video{}).Where("id = ?", id).Updates(cols).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- schedules ------------------------------------------------------------

func (s *Store) CreateSchedule(ctx context.Context, item *models.Schedule) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var item models.Schedule
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "schedule")
	}
	return &item, nil
}

func (s *Store) ListSchedules(ctx context.Context, ownerID string) ([]models.Schedule, error) {
	var items []models.Schedule
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("scheduled_time ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListDueSchedules(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.Schedule, error) {
	var items []models.Schedule
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", models.ScheduleScheduled, now).
		Where("dispatched_at IS NULL OR dispatched_at < ?", staleBefore).
		Order("scheduled_time ASC").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ClaimSchedule(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleScheduled).
		Where("dispatched_at IS NULL OR dispatched_at < ?", staleBefore).
		Update("dispatched_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ReleaseSchedule(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("dispatched_at", nil).Error
}

func (s *Store) TransitionSchedule(ctx context.Context, id string, from, to models.ScheduleStatus, patch repository.SchedulePatch) (bool, error) {
	cols := patch.Columns()
	cols["status"] = to
	cols["dispatched_at"] = nil
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, ownerID, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND status = ? AND dispatched_at IS NULL", id, ownerID, models.ScheduleScheduled).
		Delete(&models.Schedule{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// --- api keys -------------------------------------------------------------

func (s *Store) GetAPIKeys(ctx context.Context, userID string) (*models.APIKeySet, error) {
	var item models.APIKeySet
	if err := s.db.WithContext(ctx).First(&item, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, "api keys")
	}
	return &item, nil
}

func (s *Store) UpsertAPIKeys(ctx context.Context, set *models.APIKeySet) error {
	if set == nil || set.UserID == "" {
		return nil
	}
	set.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"keys", "updated_at"}),
	}).Create(set).Error
}

// --- analytics ------------------------------------------------------------

func (s *Store) ListAnalytics(ctx context.Context, ownerID, videoID string) ([]models.Analytics, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if videoID != "" {
		query = query.Where("video_id = ?", videoID)
	}
	var items []models.Analytics
	if err := query.Order("date DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
