package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/cache"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/kpi"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WOOService 工单工序执行
type WOOService struct {
	db              *gorm.DB
	repos           *repository.Repositories
	cache           *cache.Cache
	hub             *sse.Hub
	metrics         *Metrics
	enforceSequence bool
	logger          *zap.Logger
	now             func() time.Time
}

func NewWOOService(
	db *gorm.DB,
	repos *repository.Repositories,
	c *cache.Cache,
	hub *sse.Hub,
	metrics *Metrics,
	enforceSequence bool,
	logger *zap.Logger,
) *WOOService {
	return &WOOService{
		db:              db,
		repos:           repos,
		cache:           c,
		hub:             hub,
		metrics:         metrics,
		enforceSequence: enforceSequence,
		logger:          logger,
		now:             time.Now,
	}
}

// WOOActionRequest PATCH /work-order-operations/:id
type WOOActionRequest struct {
	Action            string                 `json:"action" binding:"required,oneof=start pause resume complete"`
	OperatorID        string                 `json:"operator_id"`
	PauseReasonID     string                 `json:"pause_reason_id"`
	CapturedData      map[string]interface{} `json:"captured_data"`
	QuantityCompleted *int                   `json:"quantity_completed"`
	QuantityRejected  *int                   `json:"quantity_rejected"`
	Notes             *string                `json:"notes"`
}

// WOODetail 工序详情（附带计算字段）
type WOODetail struct {
	entity.WorkOrderOperation
	AllowedActions []string `json:"allowed_actions"`
	ActiveMinutes  float64  `json:"active_minutes"`
	PausedMinutes  float64  `json:"paused_minutes"`
	Efficiency     float64  `json:"efficiency"`
}

// Get 工序详情
func (s *WOOService) Get(ctx context.Context, p *Principal, id string) (*WOODetail, error) {
	woo, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.detail(woo), nil
}

// List 工序列表（部门范围过滤）
func (s *WOOService) List(ctx context.Context, p *Principal, params repository.WOOListParams) ([]entity.WorkOrderOperation, int64, error) {
	if params.Status != "" && !containsString(entity.WOOStatuses, params.Status) {
		return nil, 0, ValidationError("unknown status "+params.Status, FieldError{Field: "status", Message: "unknown status"})
	}
	if p.Scope.IsEmpty() {
		return []entity.WorkOrderOperation{}, 0, nil
	}
	items, total, err := s.repos.WOO.List(ctx, p.TeamID, p.Scope, params)
	if err != nil {
		return nil, 0, InternalError("failed to list operations", err)
	}
	return items, total, nil
}

// Apply dispatches a PATCH action to the matching transition.
func (s *WOOService) Apply(ctx context.Context, p *Principal, id string, req WOOActionRequest) (*WOODetail, error) {
	operatorID := req.OperatorID
	if operatorID == "" {
		operatorID = p.UserID
	}
	var (
		woo *entity.WorkOrderOperation
		err error
	)
	switch req.Action {
	case entity.OperationActionStart:
		woo, err = s.Start(ctx, p, id, operatorID)
	case entity.OperationActionPause:
		woo, err = s.Pause(ctx, p, id, req.PauseReasonID, operatorID)
	case entity.OperationActionResume:
		woo, err = s.Resume(ctx, p, id, operatorID)
	case entity.OperationActionComplete:
		woo, err = s.Complete(ctx, p, id, CompleteInput{
			OperatorID:        operatorID,
			CapturedData:      req.CapturedData,
			QuantityCompleted: req.QuantityCompleted,
			QuantityRejected:  req.QuantityRejected,
			Notes:             req.Notes,
		})
	default:
		return nil, ValidationError("unknown action "+req.Action, FieldError{Field: "action", Message: "must be one of start, pause, resume, complete"})
	}
	if err != nil {
		s.countRejected(req.Action, err)
		return nil, err
	}
	return s.detail(woo), nil
}

// Start pending/ready → in_progress. The conditional update guarantees that of
// two concurrent starts exactly one succeeds.
func (s *WOOService) Start(ctx context.Context, p *Principal, id, operatorID string) (*entity.WorkOrderOperation, error) {
	woo, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAllowed(woo, entity.OperationActionStart); err != nil {
		return nil, err
	}
	if s.enforceSequence && woo.Status == entity.WOOStatusPending {
		blocked, err := s.repos.WOO.HasIncompletePredecessor(ctx, woo.OrderID, woo.OperationNumber)
		if err != nil {
			return nil, InternalError("failed to check operation sequence", err)
		}
		if blocked {
			e := InvalidTransitionError(woo.Status, entity.OperationActionStart, AllowedActions(woo.Status))
			e.Message = "predecessor operation not completed"
			return nil, e
		}
	}
	if operatorID == "" {
		operatorID = p.UserID
	}

	now := s.now()
	return s.transition(ctx, p, woo, entity.OperationActionStart, operatorID, "", map[string]interface{}{
		"status":            entity.WOOStatusInProgress,
		"operator_id":       operatorID,
		"actual_start_time": gorm.Expr("COALESCE(actual_start_time, ?)", now),
	}, nil)
}

// Pause in_progress → paused, opening a pause interval with the given reason.
func (s *WOOService) Pause(ctx context.Context, p *Principal, id, pauseReasonID, operatorID string) (*entity.WorkOrderOperation, error) {
	woo, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if pauseReasonID == "" {
		return nil, MissingReasonError()
	}
	if err := s.checkAllowed(woo, entity.OperationActionPause); err != nil {
		return nil, err
	}
	reason, err := s.repos.Pause.FindReason(ctx, p.TeamID, pauseReasonID)
	if err != nil {
		return nil, notFoundOr(err, "pause reason")
	}
	if !reason.IsActive {
		return nil, ValidationError("pause reason is inactive", FieldError{Field: "pause_reason_id", Message: "is inactive"})
	}

	now := s.now()
	return s.transition(ctx, p, woo, entity.OperationActionPause, operatorID, reason.Name, map[string]interface{}{
		"status": entity.WOOStatusPaused,
	}, func(ctx context.Context, tx *gorm.DB) error {
		return s.repos.Pause.WithTx(tx).OpenEvent(ctx, &entity.PauseEvent{
			ID:                   uuid.New().String(),
			WorkOrderOperationID: woo.ID,
			PauseReasonID:        reason.ID,
			OperatorID:           operatorID,
			StartTime:            now,
			CreatedAt:            now,
		})
	})
}

// Resume paused → in_progress, closing the open pause interval.
func (s *WOOService) Resume(ctx context.Context, p *Principal, id, operatorID string) (*entity.WorkOrderOperation, error) {
	woo, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAllowed(woo, entity.OperationActionResume); err != nil {
		return nil, err
	}

	now := s.now()
	return s.transition(ctx, p, woo, entity.OperationActionResume, operatorID, "", map[string]interface{}{
		"status": entity.WOOStatusInProgress,
	}, func(ctx context.Context, tx *gorm.DB) error {
		_, err := s.repos.Pause.WithTx(tx).CloseLatestOpen(ctx, woo.ID, now)
		return err
	})
}

// CompleteInput 完工参数
type CompleteInput struct {
	OperatorID        string
	CapturedData      map[string]interface{}
	QuantityCompleted *int
	QuantityRejected  *int
	Notes             *string
}

// Complete in_progress → completed after validating captured data against
// every data collection activity attached to the routing operation. Interim
// submissions are merged in first, so fields already recorded need not be
// sent again.
func (s *WOOService) Complete(ctx context.Context, p *Principal, id string, in CompleteInput) (*entity.WorkOrderOperation, error) {
	woo, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAllowed(woo, entity.OperationActionComplete); err != nil {
		return nil, err
	}

	var fieldErrs []FieldError
	if in.QuantityCompleted != nil && *in.QuantityCompleted < 0 {
		fieldErrs = append(fieldErrs, FieldError{Field: "quantity_completed", Message: "must be >= 0"})
	}
	if in.QuantityRejected != nil && *in.QuantityRejected < 0 {
		fieldErrs = append(fieldErrs, FieldError{Field: "quantity_rejected", Message: "must be >= 0"})
	}

	data := entity.JSONB{}
	for k, v := range woo.CapturedData {
		data[k] = v
	}
	for k, v := range in.CapturedData {
		data[k] = v
	}
	if woo.RoutingOperation != nil && len(woo.RoutingOperation.ActivityIDs) > 0 {
		activities, err := s.repos.DataCollection.FindActivities(ctx, p.TeamID, woo.RoutingOperation.ActivityIDs)
		if err != nil {
			return nil, InternalError("failed to load data collection activities", err)
		}
		submissions, err := s.repos.DataCollection.ListSubmissions(ctx, woo.ID)
		if err != nil {
			return nil, InternalError("failed to load data collection submissions", err)
		}
		data = mergeInterimData(activities, submissions, data)
		fieldErrs = append(fieldErrs, ValidateCapturedData(activities, data)...)
	}
	if len(fieldErrs) > 0 {
		return nil, ValidationError("captured data is invalid", fieldErrs...)
	}

	qtyCompleted := woo.QuantityCompleted
	if in.QuantityCompleted != nil {
		qtyCompleted = *in.QuantityCompleted
	} else if qtyCompleted == 0 {
		qtyCompleted = woo.QuantityToProduce
	}
	updates := map[string]interface{}{
		"status":             entity.WOOStatusCompleted,
		"actual_end_time":    s.now(),
		"captured_data":      data,
		"quantity_completed": qtyCompleted,
	}
	if in.QuantityRejected != nil {
		updates["quantity_rejected"] = *in.QuantityRejected
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}

	return s.transition(ctx, p, woo, entity.OperationActionComplete, in.OperatorID, "", updates,
		func(ctx context.Context, tx *gorm.DB) error {
			return s.repos.WOO.WithTx(tx).PromoteNext(ctx, woo.OrderID, woo.OperationNumber)
		})
}

// transition runs the conditional status update, the action specific writes,
// the event log insert and the order rollup in one transaction, then fires the
// post-commit side effects.
func (s *WOOService) transition(
	ctx context.Context,
	p *Principal,
	woo *entity.WorkOrderOperation,
	action, operatorID, note string,
	updates map[string]interface{},
	extra func(ctx context.Context, tx *gorm.DB) error,
) (*entity.WorkOrderOperation, error) {
	to, _ := TargetStatus(action)
	from := woo.Status
	var orderStatus string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wooRepo := s.repos.WOO.WithTx(tx)
		n, err := wooRepo.TransitionStatus(ctx, woo.ID, SourceStatuses(action), updates)
		if err != nil {
			return InternalError("failed to update operation", err)
		}
		if n == 0 {
			current, err := wooRepo.StatusOf(ctx, p.TeamID, woo.ID)
			if err != nil {
				return notFoundOr(err, "work order operation")
			}
			return InvalidTransitionError(current, action, AllowedActions(current))
		}

		if extra != nil {
			if err := extra(ctx, tx); err != nil {
				return InternalError("failed to record "+action, err)
			}
		}

		orderNumber := ""
		if woo.Order != nil {
			orderNumber = woo.Order.OrderNumber
		}
		if err := s.repos.OperationEvent.WithTx(tx).Create(ctx, &entity.OperationEvent{
			TeamID:               woo.TeamID,
			WorkOrderOperationID: woo.ID,
			OrderID:              woo.OrderID,
			OrderNumber:          orderNumber,
			OperationName:        woo.Name,
			DepartmentID:         woo.DepartmentID,
			Action:               action,
			FromStatus:           from,
			ToStatus:             to,
			OperatorID:           operatorID,
			Note:                 note,
			OccurredAt:           s.now(),
		}); err != nil {
			return InternalError("failed to record operation event", err)
		}

		status, err := s.rollupOrder(ctx, tx, woo.TeamID, woo.OrderID)
		if err != nil {
			return err
		}
		// cancelled between load and update
		if status == entity.OrderStatusCancelled {
			return ConflictError("order is cancelled")
		}
		orderStatus = status
		return nil
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, InternalError("transaction failed", err)
	}

	s.logger.Info("operation transition",
		zap.String("team_id", woo.TeamID),
		zap.String("operation_id", woo.ID),
		zap.String("action", action),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("operator_id", operatorID))
	s.afterCommit(ctx, woo, action, to, orderStatus)

	updated, err := s.repos.WOO.FindByID(ctx, p.TeamID, woo.ID)
	if err != nil {
		return nil, notFoundOr(err, "work order operation")
	}
	return updated, nil
}

// rollupOrder recomputes the order status from its operations inside tx.
func (s *WOOService) rollupOrder(ctx context.Context, tx *gorm.DB, teamID, orderID string) (string, error) {
	orderRepo := s.repos.Order.WithTx(tx)
	order, err := orderRepo.FindByID(ctx, teamID, orderID)
	if err != nil {
		return "", notFoundOr(err, "order")
	}
	if applyOrderRollup(order, order.Operations, s.now()) {
		if err := orderRepo.UpdateStatus(ctx, order); err != nil {
			return "", InternalError("failed to update order status", err)
		}
	}
	return order.Status, nil
}

func (s *WOOService) afterCommit(ctx context.Context, woo *entity.WorkOrderOperation, action, status, orderStatus string) {
	if s.cache != nil {
		s.cache.InvalidateTeam(ctx, woo.TeamID)
	}
	if s.hub != nil {
		s.hub.PublishOperationUpdate(sse.OperationUpdate{
			TeamID:       woo.TeamID,
			OrderID:      woo.OrderID,
			OperationID:  woo.ID,
			DepartmentID: woo.DepartmentID,
			Action:       action,
			Status:       status,
			OrderStatus:  orderStatus,
		})
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(action).Inc()
	}
}

func (s *WOOService) countRejected(action string, err error) {
	if s.metrics == nil {
		return
	}
	code := CodeInternal
	var appErr *AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	s.metrics.RejectedActions.WithLabelValues(action, code).Inc()
}

// load 读取工序并校验部门范围
func (s *WOOService) load(ctx context.Context, p *Principal, id string) (*entity.WorkOrderOperation, error) {
	woo, err := s.repos.WOO.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return nil, notFoundOr(err, "work order operation")
	}
	if !p.Scope.Allows(woo.DepartmentID) {
		return nil, ForbiddenError("operation belongs to a department outside your access")
	}
	return woo, nil
}

func (s *WOOService) checkAllowed(woo *entity.WorkOrderOperation, action string) error {
	if woo.Abandoned() {
		return ConflictError("order is cancelled")
	}
	if !CanTransition(woo.Status, action) {
		return InvalidTransitionError(woo.Status, action, AllowedActions(woo.Status))
	}
	return nil
}

func (s *WOOService) detail(woo *entity.WorkOrderOperation) *WOODetail {
	now := s.now()
	sample := ToSample(*woo)
	active, _ := kpi.ActiveElapsedMinutes(sample, now)
	allowed := AllowedActions(woo.Status)
	if woo.Abandoned() {
		allowed = []string{}
	}
	return &WOODetail{
		WorkOrderOperation: *woo,
		AllowedActions:     allowed,
		ActiveMinutes:      kpi.Round2(active),
		PausedMinutes:      kpi.Round2(kpi.PausedDuration(sample.Pauses, now).Minutes()),
		Efficiency:         kpi.Round2(kpi.Efficiency(woo.StandardTime, active)),
	}
}

// ToSample maps a WOO row to the calculator's input.
func ToSample(w entity.WorkOrderOperation) kpi.Operation {
	op := kpi.Operation{
		ID:                w.ID,
		DepartmentID:      w.DepartmentID,
		DepartmentName:    w.DepartmentName(),
		OperationName:     w.Name,
		Status:            w.Status,
		StandardTime:      w.StandardTime,
		StartedAt:         w.ActualStartTime,
		EndedAt:           w.ActualEndTime,
		QuantityToProduce: w.QuantityToProduce,
		QuantityCompleted: w.QuantityCompleted,
	}
	if w.OperatorID != nil {
		op.OperatorID = *w.OperatorID
	}
	for _, pe := range w.PauseEvents {
		op.Pauses = append(op.Pauses, kpi.Interval{Start: pe.StartTime, End: pe.EndTime})
	}
	return op
}
