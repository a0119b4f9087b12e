package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 采集字段类型
const (
	FieldTypeText     = "text"
	FieldTypeNumber   = "number"
	FieldTypeBoolean  = "boolean"
	FieldTypeTextarea = "textarea"
	FieldTypeSelect   = "select"
	FieldTypeFile     = "file"
	FieldTypeDate     = "date"
	FieldTypeTime     = "time"
)

// FieldTypes 合法字段类型
var FieldTypes = []string{
	FieldTypeText, FieldTypeNumber, FieldTypeBoolean, FieldTypeTextarea,
	FieldTypeSelect, FieldTypeFile, FieldTypeDate, FieldTypeTime,
}

// FieldValidation 字段校验规则
type FieldValidation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Options []string `json:"options,omitempty"`
}

// CollectionField 采集字段定义
type CollectionField struct {
	Name       string           `json:"name" binding:"required"`
	Label      string           `json:"label"`
	Type       string           `json:"type" binding:"required"`
	Required   bool             `json:"required"`
	Validation *FieldValidation `json:"validation,omitempty"`
}

// FieldList 字段定义列表（jsonb）
type FieldList []CollectionField

func (f FieldList) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FieldList) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return fmt.Errorf("failed to scan FieldList: %v", value)
}

// DataCollectionActivity 数据采集活动（可复用的字段模板）
type DataCollectionActivity struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID      string    `json:"team_id" gorm:"size:36;not null;index"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Fields      FieldList `json:"fields" gorm:"type:jsonb;not null"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedBy   string    `json:"created_by" gorm:"size:36"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DataCollectionActivity) TableName() string {
	return "mes_data_collection_activities"
}

// DataCollectionSubmission 工序执行过程中的采集记录
type DataCollectionSubmission struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID               string    `json:"team_id" gorm:"size:36;not null;index"`
	WorkOrderOperationID string    `json:"work_order_operation_id" gorm:"size:36;not null;index"`
	ActivityID           string    `json:"activity_id" gorm:"size:36;not null"`
	Data                 JSONB     `json:"data" gorm:"type:jsonb"`
	SubmittedBy          string    `json:"submitted_by" gorm:"size:36"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

func (DataCollectionSubmission) TableName() string {
	return "mes_data_collection_submissions"
}
