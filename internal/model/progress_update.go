package model

import "time"

// ProgressUpdate 周进度表，对应 progress_updates（只追加）
type ProgressUpdate struct {
	ProgressUpdateID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"progress_update_id"`
	ProjectID        string    `gorm:"type:uuid;not null"                             json:"project_id"`
	WeekNumber       int       `gorm:"not null"                                       json:"week_number"`
	Description      string    `gorm:"type:text;not null"                             json:"description"`
	Note             string    `gorm:"type:text;not null;default:''"                  json:"note"`
	RecordedBy       string    `gorm:"type:uuid;not null"                             json:"recorded_by"`
	Timestamp        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"timestamp"`
}

// TableName 指定表名
func (ProgressUpdate) TableName() string { return "progress_updates" }
