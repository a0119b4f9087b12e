package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/mes/storage"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "nimo-mes-test-secret"
	TeamID    = "team-001"
)

var dbSeq atomic.Int64

// TestEnv holds test environment resources
type TestEnv struct {
	DB       *gorm.DB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *sse.Hub
	Store    *storage.MemoryStore
}

// SetupTestDB opens an isolated in-memory sqlite database with every MES table
// migrated. A single connection keeps the shared-cache database alive and
// serialises writers the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("mes_test_%d_%d", time.Now().UnixNano(), dbSeq.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// TestConfig 测试配置
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: JWTSecret},
		MES: config.MESConfig{
			TrendDays:              30,
			ThroughputWindowHours:  168,
			UtilizationWindowHours: 24,
			RecentActivityLimit:    20,
			BoardLimit:             200,
			MaxUploadSize:          1 << 20,
		},
	}
}

// NewTestEnv wires repositories and services over a fresh test database.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	db := SetupTestDB(t)
	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	store := storage.NewMemoryStore()
	svcs := service.NewServices(service.Deps{
		DB:      db,
		Repos:   repos,
		Hub:     hub,
		Store:   store,
		Metrics: service.NewMetrics(nil),
		Config:  TestConfig(),
		Logger:  zap.NewNop(),
	})
	svcs.APIKey.SetBCryptCost(bcrypt.MinCost)
	return &TestEnv{DB: db, Repos: repos, Services: svcs, Hub: hub, Store: store}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"iss":   "nimo-mes",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router. teamID is sent
// as X-Team-ID when not empty.
func DoRequest(r *gin.Engine, method, path string, body interface{}, token, teamID string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if teamID != "" {
		req.Header.Set("X-Team-ID", teamID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// AdminPrincipal 团队管理员，全部部门可见
func AdminPrincipal(userID string) *service.Principal {
	return &service.Principal{
		UserID:   userID,
		TeamID:   TeamID,
		Role:     entity.TeamRoleAdmin,
		CanRead:  true,
		CanWrite: true,
		CanAdmin: true,
		Scope:    repository.AllDepartments(),
	}
}

// MemberPrincipal 普通成员，仅可见给定部门
func MemberPrincipal(userID string, departmentIDs ...string) *service.Principal {
	return &service.Principal{
		UserID:   userID,
		TeamID:   TeamID,
		Role:     entity.TeamRoleMember,
		CanRead:  true,
		CanWrite: true,
		Scope:    repository.DepartmentScope{IDs: departmentIDs},
	}
}

// SeedTestUser creates a user and adds it to TeamID with the given role.
func SeedTestUser(t *testing.T, db *gorm.DB, id, name, role string, allDepartments bool) *entity.User {
	t.Helper()
	now := time.Now()
	user := &entity.User{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(id) + "@test.com",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	member := &entity.TeamMember{
		TeamID:         TeamID,
		UserID:         id,
		Role:           role,
		AllDepartments: allDepartments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("Failed to seed team member: %v", err)
	}
	return user
}

// GrantDepartments gives a member explicit department access
func GrantDepartments(t *testing.T, db *gorm.DB, userID string, departmentIDs ...string) {
	t.Helper()
	for _, id := range departmentIDs {
		if err := db.Create(&entity.DepartmentAccess{
			TeamID:       TeamID,
			UserID:       userID,
			DepartmentID: id,
			CreatedAt:    time.Now(),
		}).Error; err != nil {
			t.Fatalf("Failed to grant department access: %v", err)
		}
	}
}

// SeedDepartment creates an active department
func SeedDepartment(t *testing.T, db *gorm.DB, id, name string) *entity.Department {
	t.Helper()
	dept := &entity.Department{
		ID:        id,
		TeamID:    TeamID,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(dept).Error; err != nil {
		t.Fatalf("Failed to seed department: %v", err)
	}
	return dept
}

// SeedRouting creates an active routing for productID with one operation per
// department, numbered 10, 20, 30… with a 30 minute run time.
func SeedRouting(t *testing.T, db *gorm.DB, productID string, departmentIDs ...string) *entity.Routing {
	t.Helper()
	now := time.Now()
	routing := &entity.Routing{
		ID:        uuid.New().String(),
		TeamID:    TeamID,
		Name:      "Routing " + productID,
		ProductID: productID,
		Version:   "1.0",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, deptID := range departmentIDs {
		routing.Operations = append(routing.Operations, entity.RoutingOperation{
			ID:              uuid.New().String(),
			RoutingID:       routing.ID,
			OperationNumber: (i + 1) * 10,
			Name:            fmt.Sprintf("OP%d", (i+1)*10),
			DepartmentID:    deptID,
			RunTime:         30,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if err := db.Create(routing).Error; err != nil {
		t.Fatalf("Failed to seed routing: %v", err)
	}
	return routing
}

// SeedPauseReason creates an active pause reason
func SeedPauseReason(t *testing.T, db *gorm.DB, code, name string) *entity.PauseReason {
	t.Helper()
	reason := &entity.PauseReason{
		ID:        uuid.New().String(),
		TeamID:    TeamID,
		Code:      code,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(reason).Error; err != nil {
		t.Fatalf("Failed to seed pause reason: %v", err)
	}
	return reason
}
