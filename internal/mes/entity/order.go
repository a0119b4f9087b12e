package entity

import "time"

// 订单状态
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusPaused     = "paused"
	OrderStatusWaiting    = "waiting"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// OrderStatuses 全部订单状态（看板统计顺序）
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusPaused,
	OrderStatusWaiting,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Order 生产订单
type Order struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	TeamID             string     `json:"team_id" gorm:"size:36;not null;index;uniqueIndex:idx_orders_team_number"`
	OrderNumber        string     `json:"order_number" gorm:"size:64;not null;uniqueIndex:idx_orders_team_number"`
	ERPReference       string     `json:"erp_reference" gorm:"size:64"`
	ProductID          string     `json:"product_id" gorm:"size:64;not null;index"`
	RoutingID          string     `json:"routing_id" gorm:"size:36;not null"`
	Quantity           int        `json:"quantity" gorm:"not null"`
	Priority           int        `json:"priority" gorm:"not null;default:3"` // 1=最高, 5=最低
	Status             string     `json:"status" gorm:"size:20;not null;default:pending;index"`
	ScheduledStartDate *time.Time `json:"scheduled_start_date"`
	ScheduledEndDate   *time.Time `json:"scheduled_end_date"`
	ActualStartDate    *time.Time `json:"actual_start_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	Notes              string     `json:"notes" gorm:"type:text"`
	CustomFields       JSONB      `json:"custom_fields" gorm:"type:jsonb"`
	CreatedBy          string     `json:"created_by" gorm:"size:36"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Routing    *Routing             `json:"routing,omitempty" gorm:"foreignKey:RoutingID"`
	Operations []WorkOrderOperation `json:"operations,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "mes_orders"
}

// IsTerminal 是否终态
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
