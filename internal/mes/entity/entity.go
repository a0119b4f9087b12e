package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// JSONB 通用JSON对象列
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return fmt.Errorf("failed to scan JSONB: %v", value)
}

// StringList JSON字符串数组列
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("failed to scan StringList: %v", value)
}

// Contains 是否包含
func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// AutoMigrate 自动迁移所有MES表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 组织与权限
		&User{},
		&TeamMember{},
		&Department{},
		&DepartmentAccess{},
		&APIKey{},

		// 工艺
		&Routing{},
		&RoutingOperation{},
		&DataCollectionActivity{},

		// 生产执行
		&Order{},
		&WorkOrderOperation{},
		&PauseReason{},
		&PauseEvent{},
		&OperationEvent{},
		&DataCollectionSubmission{},

		// 文件
		&StoredFile{},
	)
}
