package model

import "time"

// 反馈评分范围（闭区间）
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback 导师反馈表，对应 feedback
type Feedback struct {
	FeedbackID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"feedback_id"`
	ProjectID    string    `gorm:"type:uuid;not null"                             json:"project_id"`
	SupervisorID string    `gorm:"type:uuid;not null"                             json:"supervisor_id"`
	Comment      string    `gorm:"type:text;not null"                             json:"comment"`
	Rating       int       `gorm:"not null"                                       json:"rating"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Feedback) TableName() string { return "feedback" }
