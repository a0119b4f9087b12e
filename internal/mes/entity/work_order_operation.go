package entity

import "time"

// 工序执行状态
const (
	WOOStatusPending    = "pending"
	WOOStatusReady      = "ready"
	WOOStatusInProgress = "in_progress"
	WOOStatusPaused     = "paused"
	WOOStatusCompleted  = "completed"
)

// WOOStatuses 全部工序状态
var WOOStatuses = []string{
	WOOStatusPending,
	WOOStatusReady,
	WOOStatusInProgress,
	WOOStatusPaused,
	WOOStatusCompleted,
}

// LiveWOOStatuses 在制（非终态）工序状态
var LiveWOOStatuses = []string{
	WOOStatusPending,
	WOOStatusReady,
	WOOStatusInProgress,
	WOOStatusPaused,
}

// WorkOrderOperation 工单工序（工序模板在订单上的实例）
type WorkOrderOperation struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	TeamID             string     `json:"team_id" gorm:"size:36;not null;index"`
	OrderID            string     `json:"order_id" gorm:"size:36;not null;index"`
	RoutingOperationID string     `json:"routing_operation_id" gorm:"size:36;not null"`
	OperationNumber    int        `json:"operation_number" gorm:"not null"`
	Name               string     `json:"name" gorm:"size:128;not null"`
	DepartmentID       string     `json:"department_id" gorm:"size:36;not null;index"`
	OperatorID         *string    `json:"operator_id" gorm:"size:36;index"`
	Status             string     `json:"status" gorm:"size:20;not null;default:pending;index"`
	StandardTime       float64    `json:"standard_time" gorm:"not null;default:0"` // 分钟
	ActualStartTime    *time.Time `json:"actual_start_time"`
	ActualEndTime      *time.Time `json:"actual_end_time" gorm:"index"`
	QuantityToProduce  int        `json:"quantity_to_produce" gorm:"not null"`
	QuantityCompleted  int        `json:"quantity_completed" gorm:"not null;default:0"`
	QuantityRejected   int        `json:"quantity_rejected" gorm:"not null;default:0"`
	Notes              string     `json:"notes" gorm:"type:text"`
	CapturedData       JSONB      `json:"captured_data" gorm:"type:jsonb"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Order            *Order            `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Department       *Department       `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	RoutingOperation *RoutingOperation `json:"routing_operation,omitempty" gorm:"foreignKey:RoutingOperationID"`
	PauseEvents      []PauseEvent      `json:"pause_events,omitempty" gorm:"foreignKey:WorkOrderOperationID"`
}

func (WorkOrderOperation) TableName() string {
	return "mes_work_order_operations"
}

// Abandoned 所属订单已取消且工序未完成（需预加载 Order）
func (w *WorkOrderOperation) Abandoned() bool {
	return w.Status != WOOStatusCompleted && w.Order != nil && w.Order.Status == OrderStatusCancelled
}

// DepartmentName 部门名称（未预加载时为空）
func (w *WorkOrderOperation) DepartmentName() string {
	if w.Department == nil {
		return ""
	}
	return w.Department.Name
}

// PauseReason 暂停原因
type PauseReason struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID    string    `json:"team_id" gorm:"size:36;not null;uniqueIndex:idx_pause_reason_code"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex:idx_pause_reason_code"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PauseReason) TableName() string {
	return "mes_pause_reasons"
}

// PauseEvent 暂停区间，EndTime为空表示仍在暂停
type PauseEvent struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:36"`
	WorkOrderOperationID string     `json:"work_order_operation_id" gorm:"size:36;not null;index"`
	PauseReasonID        string     `json:"pause_reason_id" gorm:"size:36;not null"`
	OperatorID           string     `json:"operator_id" gorm:"size:36"`
	StartTime            time.Time  `json:"start_time" gorm:"not null"`
	EndTime              *time.Time `json:"end_time"`
	CreatedAt            time.Time  `json:"created_at"`

	PauseReason *PauseReason `json:"pause_reason,omitempty" gorm:"foreignKey:PauseReasonID"`
}

func (PauseEvent) TableName() string {
	return "mes_pause_events"
}

// 工序事件动作
const (
	OperationActionStart    = "start"
	OperationActionPause    = "pause"
	OperationActionResume   = "resume"
	OperationActionComplete = "complete"
)

// OperationEvent 工序状态变更日志
type OperationEvent struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID               string    `json:"team_id" gorm:"size:36;not null;index:idx_operation_events_team_time"`
	WorkOrderOperationID string    `json:"work_order_operation_id" gorm:"size:36;not null;index"`
	OrderID              string    `json:"order_id" gorm:"size:36;not null"`
	OrderNumber          string    `json:"order_number" gorm:"size:64"`
	OperationName        string    `json:"operation_name" gorm:"size:128"`
	DepartmentID         string    `json:"department_id" gorm:"size:36;not null;index"`
	Action               string    `json:"action" gorm:"size:20;not null"`
	FromStatus           string    `json:"from_status" gorm:"size:20"`
	ToStatus             string    `json:"to_status" gorm:"size:20"`
	OperatorID           string    `json:"operator_id" gorm:"size:36"`
	Note                 string    `json:"note" gorm:"size:500"`
	OccurredAt           time.Time `json:"occurred_at" gorm:"not null;index:idx_operation_events_team_time"`
}

func (OperationEvent) TableName() string {
	return "mes_operation_events"
}
