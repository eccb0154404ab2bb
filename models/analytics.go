package models

import "time"

// Analytics is one day of platform metrics for a published video.
type Analytics struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VideoID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_video_platform_date" json:"video_id"`
	OwnerID   string    `gorm:"not null;index" json:"owner_id"`
	Platform  string    `gorm:"size:16;not null;uniqueIndex:idx_analytics_video_platform_date" json:"platform"`
	Views     int64     `json:"views"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
	Shares    int64     `json:"shares"`
	WatchTime int64     `json:"watch_time"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_analytics_video_platform_date" json:"date"`
}

func (Analytics) TableName() string {
	return "analytics"
}

type AnalyticsTotals struct {
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Shares    int64 `json:"shares"`
	WatchTime int64 `json:"watch_time"`
}

// Sum adds up rows into one set of totals.
func Sum(rows []Analytics) AnalyticsTotals {
	var t AnalyticsTotals
	for _, r := range rows {
		t.Views += r.Views
		t.Likes += r.Likes
		t.Comments += r.Comments
		t.Shares += r.Shares
		t.WatchTime += r.WatchTime
	}
	return t
}
