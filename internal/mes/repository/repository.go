package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories MES仓库集合
type Repositories struct {
	Order          *OrderRepository
	WOO            *WOORepository
	Pause          *PauseRepository
	OperationEvent *OperationEventRepository
	Routing        *RoutingRepository
	Department     *DepartmentRepository
	Access         *AccessRepository
	APIKey         *APIKeyRepository
	DataCollection *DataCollectionRepository
	File           *FileRepository
}

// NewRepositories 创建MES仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:          NewOrderRepository(db),
		WOO:            NewWOORepository(db),
		Pause:          NewPauseRepository(db),
		OperationEvent: NewOperationEventRepository(db),
		Routing:        NewRoutingRepository(db),
		Department:     NewDepartmentRepository(db),
		Access:         NewAccessRepository(db),
		APIKey:         NewAPIKeyRepository(db),
		DataCollection: NewDataCollectionRepository(db),
		File:           NewFileRepository(db),
	}
}

// DepartmentScope 调用方可见的部门范围
type DepartmentScope struct {
	All bool
	IDs []string
}

// AllDepartments 不限部门
func AllDepartments() DepartmentScope {
	return DepartmentScope{All: true}
}

// IsEmpty 没有任何可见部门
func (s DepartmentScope) IsEmpty() bool {
	return !s.All && len(s.IDs) == 0
}

// Allows 是否可见指定部门
func (s DepartmentScope) Allows(departmentID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.IDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// Apply adds the department filter on column. An empty scope matches nothing.
func (s DepartmentScope) Apply(db *gorm.DB, column string) *gorm.DB {
	if s.All {
		return db
	}
	if len(s.IDs) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where(column+" IN ?", s.IDs)
}

// Page 分页参数
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() (offset, limit int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	return (p.Page - 1) * p.PageSize, p.PageSize
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
