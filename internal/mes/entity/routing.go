package entity

import "time"

// Routing 工艺路线
type Routing struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID    string    `json:"team_id" gorm:"size:36;not null;uniqueIndex:idx_routings_product_version"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	ProductID string    `json:"product_id" gorm:"size:64;not null;uniqueIndex:idx_routings_product_version"`
	Version   string    `json:"version" gorm:"size:16;not null;uniqueIndex:idx_routings_product_version"`
	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedBy string    `json:"created_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Operations []RoutingOperation `json:"operations,omitempty" gorm:"foreignKey:RoutingID"`
}

func (Routing) TableName() string {
	return "mes_routings"
}

// RoutingOperation 工序模板
type RoutingOperation struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	RoutingID       string     `json:"routing_id" gorm:"size:36;not null;uniqueIndex:idx_routing_op_number"`
	OperationNumber int        `json:"operation_number" gorm:"not null;uniqueIndex:idx_routing_op_number"`
	Name            string     `json:"name" gorm:"size:128;not null"`
	DepartmentID    string     `json:"department_id" gorm:"size:36;not null;index"`
	SetupTime       float64    `json:"setup_time" gorm:"not null;default:0"` // 分钟
	RunTime         float64    `json:"run_time" gorm:"not null;default:0"`   // 分钟，作为标准工时
	Instructions    string     `json:"instructions" gorm:"type:text"`
	RequiredSkills  StringList `json:"required_skills" gorm:"type:jsonb"`
	ActivityIDs     StringList `json:"activity_ids" gorm:"type:jsonb"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (RoutingOperation) TableName() string {
	return "mes_routing_operations"
}
