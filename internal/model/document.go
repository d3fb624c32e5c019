package model

import "time"

// Document 导师资料表，对应 documents
// StudentID 为空表示对该导师名下全部学生可见
type Document struct {
	DocumentID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"document_id"`
	SupervisorID string    `gorm:"type:uuid;not null"                             json:"supervisor_id"`
	StudentID    *string   `gorm:"type:uuid"                                      json:"student_id,omitempty"`
	Title        string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Description  string    `gorm:"type:text;not null;default:''"                  json:"description"`
	ObjectKey    string    `gorm:"type:varchar(512);not null"                     json:"-"`
	FileName     string    `gorm:"type:varchar(255);not null;default:''"          json:"file_name"`
	FileSize     int64     `gorm:"not null;default:0"                             json:"file_size"`
	ContentType  string    `gorm:"type:varchar(100);not null"                     json:"content_type"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (Document) TableName() string { return "documents" }

// VisibleTo 该资料对学生是否可见（学生须属于资料所属导师）
func (d *Document) VisibleTo(studentID string) bool {
	return d.StudentID == nil || *d.StudentID == studentID
}
