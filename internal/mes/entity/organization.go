package entity

import "time"

// User 用户
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:64;not null"`
	Email     string    `json:"email" gorm:"size:128;index"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "mes_users"
}

// 团队角色
const (
	TeamRoleAdmin  = "admin"
	TeamRoleMember = "member"
)

// TeamMember 团队成员；AllDepartments 为 true 时可见全部部门
type TeamMember struct {
	TeamID         string    `json:"team_id" gorm:"primaryKey;size:36"`
	UserID         string    `json:"user_id" gorm:"primaryKey;size:36"`
	Role           string    `json:"role" gorm:"size:16;not null;default:member"`
	AllDepartments bool      `json:"all_departments" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (TeamMember) TableName() string {
	return "mes_team_members"
}

// DepartmentAccess 用户在团队内可见的部门
type DepartmentAccess struct {
	TeamID       string    `json:"team_id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"user_id" gorm:"primaryKey;size:36"`
	DepartmentID string    `json:"department_id" gorm:"primaryKey;size:36"`
	CreatedAt    time.Time `json:"created_at"`
}

func (DepartmentAccess) TableName() string {
	return "mes_department_access"
}

// Department 部门
type Department struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID      string    `json:"team_id" gorm:"size:36;not null;index"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	OperationCount int64 `json:"operation_count" gorm:"-"`
}

func (Department) TableName() string {
	return "mes_departments"
}

// APIKey 外部集成密钥，明文只在创建时返回一次
type APIKey struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	TeamID     string     `json:"team_id" gorm:"size:36;not null;index"`
	Name       string     `json:"name" gorm:"size:128;not null"`
	KeyPrefix  string     `json:"key_prefix" gorm:"size:16;not null;uniqueIndex"`
	SecretHash string     `json:"-" gorm:"size:128;not null"`
	CanRead    bool       `json:"can_read" gorm:"not null"`
	CanWrite   bool       `json:"can_write" gorm:"not null;default:false"`
	CanAdmin   bool       `json:"can_admin" gorm:"not null;default:false"`
	ExpiresAt  *time.Time `json:"expires_at"`
	IsActive   bool       `json:"is_active" gorm:"not null"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedBy  string     `json:"created_by" gorm:"size:36;not null"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (APIKey) TableName() string {
	return "mes_api_keys"
}

// StoredFile 上传文件元数据，内容保存在对象存储
type StoredFile struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID      string    `json:"team_id" gorm:"size:36;not null;index"`
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	ObjectKey   string    `json:"-" gorm:"size:512;not null"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type" gorm:"size:128"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:36"`
	CreatedAt   time.Time `json:"created_at"`
}

func (StoredFile) TableName() string {
	return "mes_files"
}
