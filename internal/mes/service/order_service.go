package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/cache"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService 生产订单
type OrderService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	cache  *cache.Cache
	logger *zap.Logger
}

func NewOrderService(db *gorm.DB, repos *repository.Repositories, c *cache.Cache, logger *zap.Logger) *OrderService {
	return &OrderService{db: db, repos: repos, cache: c, logger: logger}
}

// CreateOrderRequest 创建订单
type CreateOrderRequest struct {
	OrderNumber        string                 `json:"order_number" binding:"required"`
	ERPReference       string                 `json:"erp_reference"`
	ProductID          string                 `json:"product_id" binding:"required"`
	RoutingID          string                 `json:"routing_id"`
	Quantity           int                    `json:"quantity" binding:"required,min=1"`
	Priority           int                    `json:"priority" binding:"omitempty,min=1,max=5"`
	ScheduledStartDate *time.Time             `json:"scheduled_start_date"`
	ScheduledEndDate   *time.Time             `json:"scheduled_end_date"`
	Notes              string                 `json:"notes"`
	CustomFields       map[string]interface{} `json:"custom_fields"`
}

// Create creates the order and instantiates one WOO per routing operation. The
// first operation starts ready, the rest pending.
func (s *OrderService) Create(ctx context.Context, p *Principal, req CreateOrderRequest) (*entity.Order, error) {
	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if req.OrderNumber == "" {
		return nil, ValidationError("order_number is required", FieldError{Field: "order_number", Message: "is required"})
	}
	if req.Quantity < 1 {
		return nil, ValidationError("quantity must be at least 1", FieldError{Field: "quantity", Message: "must be >= 1"})
	}
	if req.Priority == 0 {
		req.Priority = 3
	}
	if req.Priority < 1 || req.Priority > 5 {
		return nil, ValidationError("priority must be between 1 and 5", FieldError{Field: "priority", Message: "must be between 1 and 5"})
	}
	if err := checkSchedule(req.ScheduledStartDate, req.ScheduledEndDate); err != nil {
		return nil, err
	}

	exists, err := s.repos.Order.ExistsByNumber(ctx, p.TeamID, req.OrderNumber, "")
	if err != nil {
		return nil, InternalError("failed to check order number", err)
	}
	if exists {
		return nil, ConflictError("order number " + req.OrderNumber + " already exists")
	}

	routing, err := s.resolveRouting(ctx, p.TeamID, req.ProductID, req.RoutingID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &entity.Order{
		ID:                 uuid.New().String(),
		TeamID:             p.TeamID,
		OrderNumber:        req.OrderNumber,
		ERPReference:       req.ERPReference,
		ProductID:          req.ProductID,
		RoutingID:          routing.ID,
		Quantity:           req.Quantity,
		Priority:           req.Priority,
		Status:             entity.OrderStatusPending,
		ScheduledStartDate: req.ScheduledStartDate,
		ScheduledEndDate:   req.ScheduledEndDate,
		Notes:              req.Notes,
		CustomFields:       entity.JSONB(req.CustomFields),
		CreatedBy:          p.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	woos := make([]entity.WorkOrderOperation, 0, len(routing.Operations))
	for i, op := range routing.Operations {
		status := entity.WOOStatusPending
		if i == 0 {
			status = entity.WOOStatusReady
		}
		woos = append(woos, entity.WorkOrderOperation{
			ID:                 uuid.New().String(),
			TeamID:             p.TeamID,
			OrderID:            order.ID,
			RoutingOperationID: op.ID,
			OperationNumber:    op.OperationNumber,
			Name:               op.Name,
			DepartmentID:       op.DepartmentID,
			Status:             status,
			StandardTime:       op.RunTime,
			QuantityToProduce:  req.Quantity,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Order.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.repos.WOO.WithTx(tx).BatchCreate(ctx, woos)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ConflictError("order number " + req.OrderNumber + " already exists")
		}
		return nil, InternalError("failed to create order", err)
	}

	s.logger.Info("order created",
		zap.String("team_id", p.TeamID),
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("operations", len(woos)))
	s.invalidate(ctx, p.TeamID)
	return s.Get(ctx, p, order.ID)
}

func (s *OrderService) resolveRouting(ctx context.Context, teamID, productID, routingID string) (*entity.Routing, error) {
	var (
		routing *entity.Routing
		err     error
	)
	if routingID != "" {
		routing, err = s.repos.Routing.FindByID(ctx, teamID, routingID)
	} else {
		routing, err = s.repos.Routing.FindActiveForProduct(ctx, teamID, productID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("routing")
		}
		return nil, InternalError("failed to load routing", err)
	}
	if routing.ProductID != productID {
		return nil, ValidationError("routing does not belong to product "+productID, FieldError{Field: "routing_id", Message: "product mismatch"})
	}
	if !routing.IsActive {
		return nil, ValidationError("routing is inactive", FieldError{Field: "routing_id", Message: "is inactive"})
	}
	if len(routing.Operations) == 0 {
		return nil, ValidationError("routing has no operations", FieldError{Field: "routing_id", Message: "has no operations"})
	}
	return routing, nil
}

// Get returns the order with only the operations in the caller's departments.
// An order with no visible operation is reported as not found.
func (s *OrderService) Get(ctx context.Context, p *Principal, id string) (*entity.Order, error) {
	visible, err := s.repos.Order.VisibleTo(ctx, p.TeamID, id, p.Scope)
	if err != nil {
		return nil, InternalError("failed to check order scope", err)
	}
	if !visible {
		return nil, NotFoundError("order")
	}
	order, err := s.repos.Order.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return nil, notFoundOr(err, "order")
	}
	return scopeOperations(order, p.Scope), nil
}

func scopeOperations(order *entity.Order, scope repository.DepartmentScope) *entity.Order {
	visible := order.Operations[:0]
	for _, op := range order.Operations {
		if scope.Allows(op.DepartmentID) {
			visible = append(visible, op)
		}
	}
	order.Operations = visible
	return order
}

func (s *OrderService) List(ctx context.Context, p *Principal, params repository.OrderListParams) ([]entity.Order, int64, error) {
	if params.Status != "" && !containsString(entity.OrderStatuses, params.Status) {
		return nil, 0, ValidationError("unknown status "+params.Status, FieldError{Field: "status", Message: "unknown status"})
	}
	orders, total, err := s.repos.Order.List(ctx, p.TeamID, p.Scope, params)
	if err != nil {
		return nil, 0, InternalError("failed to list orders", err)
	}
	return orders, total, nil
}

// UpdateOrderRequest PATCH /orders/:id。Status 只接受 cancelled
type UpdateOrderRequest struct {
	OrderNumber        *string                `json:"order_number"`
	ERPReference       *string                `json:"erp_reference"`
	Quantity           *int                   `json:"quantity"`
	Priority           *int                   `json:"priority"`
	Status             *string                `json:"status"`
	ScheduledStartDate *time.Time             `json:"scheduled_start_date"`
	ScheduledEndDate   *time.Time             `json:"scheduled_end_date"`
	Notes              *string                `json:"notes"`
	CustomFields       map[string]interface{} `json:"custom_fields"`
}

// Update edits order fields. Status is derived from operations, so the only
// status a client may set is cancelled. Only the edited columns are written so
// a concurrent rollup is never overwritten.
func (s *OrderService) Update(ctx context.Context, p *Principal, id string, req UpdateOrderRequest) (*entity.Order, error) {
	order, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	cancel := false
	if req.Status != nil && *req.Status != order.Status {
		if *req.Status != entity.OrderStatusCancelled {
			return nil, ValidationError("order status is derived from its operations; only cancelled can be set",
				FieldError{Field: "status", Message: "only cancelled is accepted"})
		}
		if order.Status == entity.OrderStatusCompleted {
			return nil, ConflictError("completed order cannot be cancelled")
		}
		cancel = true
	}

	fields := map[string]interface{}{}
	if req.OrderNumber != nil {
		number := strings.TrimSpace(*req.OrderNumber)
		if number == "" {
			return nil, ValidationError("order_number cannot be empty", FieldError{Field: "order_number", Message: "is required"})
		}
		if number != order.OrderNumber {
			exists, err := s.repos.Order.ExistsByNumber(ctx, p.TeamID, number, order.ID)
			if err != nil {
				return nil, InternalError("failed to check order number", err)
			}
			if exists {
				return nil, ConflictError("order number " + number + " already exists")
			}
			fields["order_number"] = number
		}
	}
	if req.ERPReference != nil {
		fields["erp_reference"] = *req.ERPReference
	}
	if req.Priority != nil {
		if *req.Priority < 1 || *req.Priority > 5 {
			return nil, ValidationError("priority must be between 1 and 5", FieldError{Field: "priority", Message: "must be between 1 and 5"})
		}
		fields["priority"] = *req.Priority
	}
	quantityChanged := false
	if req.Quantity != nil && *req.Quantity != order.Quantity {
		if *req.Quantity < 1 {
			return nil, ValidationError("quantity must be at least 1", FieldError{Field: "quantity", Message: "must be >= 1"})
		}
		if order.Status != entity.OrderStatusPending {
			return nil, ConflictError("quantity can only change before production starts")
		}
		quantityChanged = true
	}
	start, end := order.ScheduledStartDate, order.ScheduledEndDate
	if req.ScheduledStartDate != nil {
		start = req.ScheduledStartDate
		fields["scheduled_start_date"] = req.ScheduledStartDate
	}
	if req.ScheduledEndDate != nil {
		end = req.ScheduledEndDate
		fields["scheduled_end_date"] = req.ScheduledEndDate
	}
	if err := checkSchedule(start, end); err != nil {
		return nil, err
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.CustomFields != nil {
		fields["custom_fields"] = entity.JSONB(req.CustomFields)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.repos.Order.WithTx(tx)
		if cancel {
			n, err := orderRepo.Cancel(ctx, order.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return ConflictError("completed order cannot be cancelled")
			}
		}
		if quantityChanged {
			n, err := orderRepo.SetQuantity(ctx, order.ID, *req.Quantity)
			if err != nil {
				return err
			}
			if n == 0 {
				return ConflictError("quantity can only change before production starts")
			}
			if err := tx.Model(&entity.WorkOrderOperation{}).
				Where("order_id = ?", order.ID).
				Update("quantity_to_produce", *req.Quantity).Error; err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			return orderRepo.UpdateFields(ctx, order.ID, fields)
		}
		return nil
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ConflictError("order number already exists")
		}
		return nil, InternalError("failed to update order", err)
	}

	if cancel {
		s.logger.Info("order cancelled",
			zap.String("team_id", p.TeamID),
			zap.String("order_id", order.ID))
	}
	s.invalidate(ctx, p.TeamID)
	return s.Get(ctx, p, order.ID)
}

func (s *OrderService) invalidate(ctx context.Context, teamID string) {
	if s.cache != nil {
		s.cache.InvalidateTeam(ctx, teamID)
	}
}

func checkSchedule(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ValidationError("scheduled_end_date must not be before scheduled_start_date",
			FieldError{Field: "scheduled_end_date", Message: "before scheduled_start_date"})
	}
	return nil
}
