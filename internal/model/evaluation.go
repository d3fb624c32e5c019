package model

import "time"

// 评分范围（闭区间）
const (
	MinScore = 0
	MaxScore = 100
)

// MaxCommentLen 评语长度上限（按字符计）
const MaxCommentLen = 2000

// Evaluation 评分表，对应 evaluations
// 一个项目可有多条，按时间最新的一条为当前评分
type Evaluation struct {
	EvaluationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"evaluation_id"`
	ProjectID    string    `gorm:"type:uuid;not null"                             json:"project_id"`
	FinalScore   int       `gorm:"not null"                                       json:"final_score"`
	FinalComment string    `gorm:"type:text;not null;default:''"                  json:"final_comment"`
	EvaluatorID  string    `gorm:"type:uuid;not null"                             json:"evaluator_id"`
	Timestamp    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"timestamp"`
}

// TableName 指定表名
func (Evaluation) TableName() string { return "evaluations" }
