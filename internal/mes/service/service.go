package service

import (
	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/cache"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/mes/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth           *AuthService
	Access         *AccessService
	APIKey         *APIKeyService
	Order          *OrderService
	WOO            *WOOService
	Routing        *RoutingService
	Department     *DepartmentService
	PauseReason    *PauseReasonService
	DataCollection *DataCollectionService
	File           *FileService
	Analytics      *AnalyticsService
}

// Deps 外部依赖。Cache/Hub/Store/Metrics 可以为 nil
type Deps struct {
	DB      *gorm.DB
	Repos   *repository.Repositories
	Cache   *cache.Cache
	Hub     *sse.Hub
	Store   storage.ObjectStore
	Metrics *Metrics
	Config  *config.Config
	Logger  *zap.Logger
}

func NewServices(d Deps) *Services {
	repos := d.Repos
	cfg := d.Config
	access := NewAccessService(repos.Access, repos.Department, d.Logger)

	return &Services{
		Auth:           NewAuthService(repos.APIKey, access, cfg.JWT.Secret, d.Logger),
		Access:         access,
		APIKey:         NewAPIKeyService(repos.APIKey, access, d.Logger),
		Order:          NewOrderService(d.DB, repos, d.Cache, d.Logger),
		WOO:            NewWOOService(d.DB, repos, d.Cache, d.Hub, d.Metrics, cfg.MES.EnforceSequence, d.Logger),
		Routing:        NewRoutingService(repos, d.Logger),
		Department:     NewDepartmentService(repos.Department, repos.Access, d.Logger),
		PauseReason:    NewPauseReasonService(repos.Pause, d.Logger),
		DataCollection: NewDataCollectionService(repos, d.Logger),
		File:           NewFileService(repos.File, d.Store, cfg.MES.MaxUploadSize, d.Logger),
		Analytics: NewAnalyticsService(repos, d.Cache, d.Metrics, AnalyticsOptions{
			TrendDays:              cfg.MES.TrendDays,
			ThroughputWindowHours:  cfg.MES.ThroughputWindowHours,
			UtilizationWindowHours: cfg.MES.UtilizationWindowHours,
			RecentActivityLimit:    cfg.MES.RecentActivityLimit,
			BoardLimit:             cfg.MES.BoardLimit,
		}, d.Logger),
	}
}
