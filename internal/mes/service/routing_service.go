package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RoutingService 工艺路线
type RoutingService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewRoutingService(repos *repository.Repositories, logger *zap.Logger) *RoutingService {
	return &RoutingService{repos: repos, logger: logger}
}

// RoutingOperationInput 工序模板输入
type RoutingOperationInput struct {
	OperationNumber int      `json:"operation_number" binding:"required,min=1"`
	Name            string   `json:"name" binding:"required"`
	DepartmentID    string   `json:"department_id" binding:"required"`
	SetupTime       float64  `json:"setup_time" binding:"min=0"`
	RunTime         float64  `json:"run_time" binding:"min=0"`
	Instructions    string   `json:"instructions"`
	RequiredSkills  []string `json:"required_skills"`
	ActivityIDs     []string `json:"activity_ids"`
}

// CreateRoutingRequest 创建路线
type CreateRoutingRequest struct {
	Name       string                  `json:"name" binding:"required"`
	ProductID  string                  `json:"product_id" binding:"required"`
	Version    string                  `json:"version"`
	IsActive   *bool                   `json:"is_active"`
	Operations []RoutingOperationInput `json:"operations" binding:"required,min=1,dive"`
}

// Create validates and stores a routing with its operations.
func (s *RoutingService) Create(ctx context.Context, p *Principal, req CreateRoutingRequest) (*entity.Routing, error) {
	if fields := s.validate(ctx, p.TeamID, &req); len(fields) > 0 {
		return nil, ValidationError("invalid routing", fields...)
	}
	exists, err := s.repos.Routing.Exists(ctx, p.TeamID, req.ProductID, req.Version)
	if err != nil {
		return nil, InternalError("failed to check routing", err)
	}
	if exists {
		return nil, ConflictError(fmt.Sprintf("routing %s version %s already exists", req.ProductID, req.Version))
	}

	now := time.Now()
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	routing := &entity.Routing{
		ID:        uuid.New().String(),
		TeamID:    p.TeamID,
		Name:      strings.TrimSpace(req.Name),
		ProductID: strings.TrimSpace(req.ProductID),
		Version:   req.Version,
		IsActive:  active,
		CreatedBy: p.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, op := range req.Operations {
		routing.Operations = append(routing.Operations, entity.RoutingOperation{
			ID:              uuid.New().String(),
			RoutingID:       routing.ID,
			OperationNumber: op.OperationNumber,
			Name:            strings.TrimSpace(op.Name),
			DepartmentID:    op.DepartmentID,
			SetupTime:       op.SetupTime,
			RunTime:         op.RunTime,
			Instructions:    op.Instructions,
			RequiredSkills:  entity.StringList(op.RequiredSkills),
			ActivityIDs:     entity.StringList(op.ActivityIDs),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if err := s.repos.Routing.Create(ctx, routing); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ConflictError("routing already exists")
		}
		return nil, InternalError("failed to create routing", err)
	}
	s.logger.Info("routing created",
		zap.String("team_id", p.TeamID),
		zap.String("routing_id", routing.ID),
		zap.String("product_id", routing.ProductID),
		zap.Int("operations", len(routing.Operations)))
	return s.Get(ctx, p, routing.ID)
}

func (s *RoutingService) validate(ctx context.Context, teamID string, req *CreateRoutingRequest) []FieldError {
	var fields []FieldError
	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Message: "is required"})
	}
	if strings.TrimSpace(req.ProductID) == "" {
		fields = append(fields, FieldError{Field: "product_id", Message: "is required"})
	}
	if req.Version == "" {
		req.Version = "1.0"
	}
	if len(req.Operations) == 0 {
		return append(fields, FieldError{Field: "operations", Message: "at least one operation is required"})
	}

	numbers := make(map[int]bool, len(req.Operations))
	var deptIDs, activityIDs []string
	for i, op := range req.Operations {
		prefix := fmt.Sprintf("operations[%d]", i)
		if op.OperationNumber < 1 {
			fields = append(fields, FieldError{Field: prefix + ".operation_number", Message: "must be >= 1"})
		} else if numbers[op.OperationNumber] {
			fields = append(fields, FieldError{Field: prefix + ".operation_number", Message: "duplicate operation number"})
		}
		numbers[op.OperationNumber] = true
		if strings.TrimSpace(op.Name) == "" {
			fields = append(fields, FieldError{Field: prefix + ".name", Message: "is required"})
		}
		if op.SetupTime < 0 || op.RunTime < 0 {
			fields = append(fields, FieldError{Field: prefix + ".run_time", Message: "times must be >= 0"})
		}
		if op.DepartmentID == "" {
			fields = append(fields, FieldError{Field: prefix + ".department_id", Message: "is required"})
		} else {
			deptIDs = append(deptIDs, op.DepartmentID)
		}
		activityIDs = append(activityIDs, op.ActivityIDs...)
	}

	deptIDs = uniqueSorted(deptIDs)
	if len(deptIDs) > 0 {
		n, err := s.repos.Department.CountInTeam(ctx, teamID, deptIDs)
		if err != nil || int(n) != len(deptIDs) {
			fields = append(fields, FieldError{Field: "operations.department_id", Message: "unknown department"})
		}
	}
	activityIDs = uniqueSorted(activityIDs)
	if len(activityIDs) > 0 {
		found, err := s.repos.DataCollection.FindActivities(ctx, teamID, activityIDs)
		if err != nil || len(found) != len(activityIDs) {
			fields = append(fields, FieldError{Field: "operations.activity_ids", Message: "unknown data collection activity"})
		}
	}
	return fields
}

func (s *RoutingService) Get(ctx context.Context, p *Principal, id string) (*entity.Routing, error) {
	routing, err := s.repos.Routing.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return nil, notFoundOr(err, "routing")
	}
	return routing, nil
}

func (s *RoutingService) List(ctx context.Context, p *Principal, params repository.RoutingListParams) ([]entity.Routing, int64, error) {
	items, total, err := s.repos.Routing.List(ctx, p.TeamID, params)
	if err != nil {
		return nil, 0, InternalError("failed to list routings", err)
	}
	return items, total, nil
}

// SetActive 启用/停用路线
func (s *RoutingService) SetActive(ctx context.Context, p *Principal, id string, active bool) (*entity.Routing, error) {
	n, err := s.repos.Routing.SetActive(ctx, p.TeamID, id, active)
	if err != nil {
		return nil, InternalError("failed to update routing", err)
	}
	if n == 0 {
		return nil, NotFoundError("routing")
	}
	return s.Get(ctx, p, id)
}

// 导入模板列：工序号 | 工序名称 | 部门(名称或ID) | 准备时间 | 运行时间 | 作业指导 | 技能(逗号分隔) | 采集活动ID(逗号分隔)
var routingImportHeaders = []string{
	"operation_number", "name", "department", "setup_time", "run_time",
	"instructions", "required_skills", "activity_ids",
}

// ImportRoutingRequest 路线表头字段，工序来自xlsx
type ImportRoutingRequest struct {
	Name      string `form:"name" binding:"required"`
	ProductID string `form:"product_id" binding:"required"`
	Version   string `form:"version"`
}

// Import builds a routing from the first sheet of f. Departments may be given by
// name or id.
func (s *RoutingService) Import(ctx context.Context, p *Principal, req ImportRoutingRequest, f *excelize.File) (*entity.Routing, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, ValidationError("cannot read workbook: " + err.Error())
	}
	if len(rows) < 2 {
		return nil, ValidationError("workbook has no operation rows")
	}

	depts, err := s.repos.Department.List(ctx, p.TeamID, repository.AllDepartments())
	if err != nil {
		return nil, InternalError("failed to load departments", err)
	}
	byName := make(map[string]string, len(depts))
	for _, d := range depts {
		byName[strings.ToLower(d.Name)] = d.ID
		byName[strings.ToLower(d.ID)] = d.ID
	}

	create := CreateRoutingRequest{Name: req.Name, ProductID: req.ProductID, Version: req.Version}
	var fields []FieldError
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		line := i + 2
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		number, err := strconv.Atoi(cell(0))
		if err != nil {
			fields = append(fields, FieldError{Field: fmt.Sprintf("row %d.operation_number", line), Message: "must be an integer"})
			continue
		}
		deptID, ok := byName[strings.ToLower(cell(2))]
		if !ok {
			fields = append(fields, FieldError{Field: fmt.Sprintf("row %d.department", line), Message: "unknown department " + cell(2)})
			continue
		}
		op := RoutingOperationInput{
			OperationNumber: number,
			Name:            cell(1),
			DepartmentID:    deptID,
			Instructions:    cell(5),
			RequiredSkills:  splitList(cell(6)),
			ActivityIDs:     splitList(cell(7)),
		}
		if v := cell(3); v != "" {
			if op.SetupTime, err = strconv.ParseFloat(v, 64); err != nil {
				fields = append(fields, FieldError{Field: fmt.Sprintf("row %d.setup_time", line), Message: "must be a number"})
			}
		}
		if v := cell(4); v != "" {
			if op.RunTime, err = strconv.ParseFloat(v, 64); err != nil {
				fields = append(fields, FieldError{Field: fmt.Sprintf("row %d.run_time", line), Message: "must be a number"})
			}
		}
		create.Operations = append(create.Operations, op)
	}
	if len(fields) > 0 {
		return nil, ValidationError("invalid routing workbook", fields...)
	}
	return s.Create(ctx, p, create)
}

// ImportTemplate 导入模板
func (s *RoutingService) ImportTemplate() (*excelize.File, error) {
	f := newWorkbook("Operations")
	example := [][]interface{}{
		{10, "Cutting", "Fabrication", 5, 12.5, "Cut to drawing", "saw", ""},
	}
	if err := writeSheet(f, "Operations", routingImportHeaders, example); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
