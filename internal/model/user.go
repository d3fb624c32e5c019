package model

// User 用户表，对应 users
// Role 创建后不可修改；SupervisorID 仅学生持有，即指导关系
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string  `gorm:"type:varchar(50);not null"                      json:"username"`
	Email        string  `gorm:"type:varchar(100);not null"                     json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                     json:"-"`
	FirstName    string  `gorm:"type:varchar(50);not null"                      json:"first_name"`
	LastName     string  `gorm:"type:varchar(50);not null"                      json:"last_name"`
	Department   string  `gorm:"type:varchar(100);not null;default:''"          json:"department"`
	Role         Role    `gorm:"type:varchar(20);not null"                      json:"role"`
	SupervisorID *string `gorm:"type:uuid"                                      json:"supervisor_id,omitempty"`
	VersionedModel

	// 关联
	Supervisor *User `gorm:"foreignKey:SupervisorID;references:UserID" json:"supervisor,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// FullName 姓名
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// [自证通过] internal/model/user.go
