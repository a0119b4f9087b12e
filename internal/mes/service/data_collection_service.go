package service

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DataCollectionService 数据采集活动与过程记录
type DataCollectionService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewDataCollectionService(repos *repository.Repositories, logger *zap.Logger) *DataCollectionService {
	return &DataCollectionService{repos: repos, logger: logger}
}

// CreateActivityRequest 创建采集活动
type CreateActivityRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Fields      []entity.CollectionField `json:"fields" binding:"required,min=1"`
}

func (s *DataCollectionService) CreateActivity(ctx context.Context, p *Principal, req CreateActivityRequest) (*entity.DataCollectionActivity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ValidationError("name is required", FieldError{Field: "name", Message: "is required"})
	}
	if len(req.Fields) == 0 {
		return nil, ValidationError("at least one field is required", FieldError{Field: "fields", Message: "is required"})
	}
	fields := entity.FieldList(req.Fields)
	if errs := ValidateActivityFields(fields); len(errs) > 0 {
		return nil, ValidationError("invalid activity fields", errs...)
	}

	now := time.Now()
	activity := &entity.DataCollectionActivity{
		ID:          uuid.New().String(),
		TeamID:      p.TeamID,
		Name:        name,
		Description: req.Description,
		Fields:      fields,
		IsActive:    true,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.DataCollection.CreateActivity(ctx, activity); err != nil {
		return nil, InternalError("failed to create activity", err)
	}
	s.logger.Info("data collection activity created",
		zap.String("team_id", p.TeamID),
		zap.String("activity_id", activity.ID),
		zap.Int("fields", len(fields)))
	return activity, nil
}

func (s *DataCollectionService) ListActivities(ctx context.Context, p *Principal, activeOnly bool) ([]entity.DataCollectionActivity, error) {
	items, err := s.repos.DataCollection.ListActivities(ctx, p.TeamID, activeOnly)
	if err != nil {
		return nil, InternalError("failed to list activities", err)
	}
	return items, nil
}

// SubmitRequest POST /data-collection
type SubmitRequest struct {
	WorkOrderOperationID string                 `json:"work_order_operation_id" binding:"required"`
	ActivityID           string                 `json:"activity_id" binding:"required"`
	Data                 map[string]interface{} `json:"data" binding:"required"`
}

// Submit records interim captured data for any operation not yet completed.
// The latest value per field is merged into captured_data on completion.
func (s *DataCollectionService) Submit(ctx context.Context, p *Principal, req SubmitRequest) (*entity.DataCollectionSubmission, error) {
	woo, err := s.repos.WOO.FindByID(ctx, p.TeamID, req.WorkOrderOperationID)
	if err != nil {
		return nil, notFoundOr(err, "work order operation")
	}
	if !p.Scope.Allows(woo.DepartmentID) {
		return nil, ForbiddenError("operation is outside your department scope")
	}
	if woo.Status == entity.WOOStatusCompleted {
		return nil, ConflictError("operation is already completed")
	}
	activity, err := s.repos.DataCollection.FindActivity(ctx, p.TeamID, req.ActivityID)
	if err != nil {
		return nil, notFoundOr(err, "data collection activity")
	}
	if errs := ValidateCapturedData([]entity.DataCollectionActivity{*activity}, req.Data); len(errs) > 0 {
		return nil, ValidationError("captured data failed validation", errs...)
	}

	submission := &entity.DataCollectionSubmission{
		ID:                   uuid.New().String(),
		TeamID:               p.TeamID,
		WorkOrderOperationID: woo.ID,
		ActivityID:           activity.ID,
		Data:                 entity.JSONB(req.Data),
		SubmittedBy:          p.UserID,
		SubmittedAt:          time.Now(),
	}
	if err := s.repos.DataCollection.CreateSubmission(ctx, submission); err != nil {
		return nil, InternalError("failed to save submission", err)
	}
	return submission, nil
}

// ListSubmissions 工序的采集记录
func (s *DataCollectionService) ListSubmissions(ctx context.Context, p *Principal, wooID string) ([]entity.DataCollectionSubmission, error) {
	woo, err := s.repos.WOO.FindByID(ctx, p.TeamID, wooID)
	if err != nil {
		return nil, notFoundOr(err, "work order operation")
	}
	if !p.Scope.Allows(woo.DepartmentID) {
		return nil, ForbiddenError("operation is outside your department scope")
	}
	items, err := s.repos.DataCollection.ListSubmissions(ctx, woo.ID)
	if err != nil {
		return nil, InternalError("failed to list submissions", err)
	}
	return items, nil
}
