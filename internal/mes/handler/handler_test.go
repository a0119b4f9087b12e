package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*gin.Engine, *testutil.TestEnv, string) {
	t.Helper()
	env := testutil.NewTestEnv(t)
	testutil.SeedTestUser(t, env.DB, "u-admin", "Admin", entity.TeamRoleAdmin, false)
	testutil.SeedTestUser(t, env.DB, "u-op", "Operator", entity.TeamRoleMember, false)
	testutil.SeedDepartment(t, env.DB, "d-cut", "Cutting")
	testutil.SeedDepartment(t, env.DB, "d-asm", "Assembly")
	testutil.GrantDepartments(t, env.DB, "u-op", "d-cut")
	testutil.SeedRouting(t, env.DB, "P-100", "d-cut", "d-asm")

	r := testutil.SetupRouter()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	RegisterRoutes(api, NewHandlers(env.Services, env.Hub), middleware.Auth(env.Services.Auth))

	token := testutil.GenerateTestToken("u-admin", "Admin", "admin@test.com")
	return r, env, token
}

func createOrder(t *testing.T, r *gin.Engine, token string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(r, "POST", "/api/v1/orders", map[string]interface{}{
		"order_number": "WO-100",
		"product_id":   "P-100",
		"quantity":     5,
	}, token, testutil.TeamID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := testutil.ParseResponse(w)
	assert.Equal(t, float64(0), resp["code"])
	assert.Equal(t, "success", resp["message"])
	return resp["data"].(map[string]interface{})
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := testutil.ParseResponse(w)
	body, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, body["requestId"])
	return body["code"].(string)
}

func TestAuthRequired(t *testing.T) {
	r, _, _ := setupHandlerTest(t)

	w := testutil.DoRequest(r, "GET", "/api/v1/orders", nil, "", testutil.TeamID)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.CodeUnauthorized, errorCode(t, w))

	w = testutil.DoRequest(r, "GET", "/api/v1/orders", nil, testutil.GenerateTestToken("u-admin", "Admin", "a@test.com"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(r, "GET", "/api/v1/orders", nil, testutil.GenerateTestToken("u-ghost", "Ghost", "g@test.com"), testutil.TeamID)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPIKeyPermissions(t *testing.T) {
	r, env, token := setupHandlerTest(t)

	w := testutil.DoRequest(r, "POST", "/api/v1/api-keys", map[string]interface{}{"name": "dashboard"}, token, testutil.TeamID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key := testutil.ParseResponse(w)["data"].(map[string]interface{})["key"].(string)

	// read-only key: no team header needed, reads pass, writes are refused
	w = testutil.DoRequest(r, "GET", "/api/v1/orders", nil, key, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, "POST", "/api/v1/orders", map[string]interface{}{
		"order_number": "WO-1", "product_id": "P-100", "quantity": 1,
	}, key, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, service.CodeForbidden, errorCode(t, w))

	w = testutil.DoRequest(r, "GET", "/api/v1/api-keys", nil, key, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	keys, err := env.Services.APIKey.List(context.Background(), testutil.TeamID)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	w = testutil.DoRequest(r, "DELETE", "/api/v1/api-keys/"+keys[0].ID, nil, token, testutil.TeamID)
	assert.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(r, "GET", "/api/v1/orders", nil, key, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMemberCannotAdmin(t *testing.T) {
	r, _, _ := setupHandlerTest(t)
	op := testutil.GenerateTestToken("u-op", "Operator", "op@test.com")

	w := testutil.DoRequest(r, "PUT", "/api/v1/departments/access/u-op", map[string]interface{}{"all_departments": true}, op, testutil.TeamID)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoRequest(r, "GET", "/api/v1/departments", nil, op, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Cutting", items[0].(map[string]interface{})["name"])
}

func TestCreateOrderBindingErrors(t *testing.T) {
	r, _, token := setupHandlerTest(t)

	w := testutil.DoRequest(r, "POST", "/api/v1/orders", map[string]interface{}{"product_id": "P-100", "quantity": 0}, token, testutil.TeamID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeValidation, errorCode(t, w))
	details := testutil.ParseResponse(w)["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.NotEmpty(t, details["fields"])
}

func TestOrderAndOperationFlow(t *testing.T) {
	r, _, token := setupHandlerTest(t)
	order := createOrder(t, r, token)
	orderID := order["id"].(string)
	ops := order["operations"].([]interface{})
	require.Len(t, ops, 2)
	first := ops[0].(map[string]interface{})["id"].(string)
	second := ops[1].(map[string]interface{})["id"].(string)

	w := testutil.DoRequest(r, "GET", "/api/v1/orders/"+orderID, nil, token, testutil.TeamID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, "PATCH", "/api/v1/work-order-operations/"+first, map[string]interface{}{"action": "start"}, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, entity.WOOStatusInProgress, data["status"])
	assert.Equal(t, []interface{}{"complete", "pause"}, data["allowed_actions"])

	w = testutil.DoRequest(r, "PATCH", "/api/v1/work-order-operations/"+first, map[string]interface{}{"action": "resume"}, token, testutil.TeamID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeInvalidTransition, errorCode(t, w))
	details := testutil.ParseResponse(w)["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, entity.WOOStatusInProgress, details["currentStatus"])

	w = testutil.DoRequest(r, "PATCH", "/api/v1/work-order-operations/"+first, map[string]interface{}{"action": "pause"}, token, testutil.TeamID)
	assert.Equal(t, service.CodeMissingReason, errorCode(t, w))

	w = testutil.DoRequest(r, "PATCH", "/api/v1/work-order-operations/"+first, map[string]interface{}{"action": "explode"}, token, testutil.TeamID)
	assert.Equal(t, service.CodeValidation, errorCode(t, w))

	w = testutil.DoRequest(r, "PATCH", "/api/v1/work-order-operations/"+first, map[string]interface{}{"action": "complete", "quantity_completed": 5}, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoRequest(r, "GET", "/api/v1/work-order-operations/"+second, nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.WOOStatusReady, testutil.ParseResponse(w)["data"].(map[string]interface{})["status"])

	w = testutil.DoRequest(r, "GET", "/api/v1/work-order-operations?orderId="+orderID+"&status=completed", nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	pagination := testutil.ParseResponse(w)["data"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["total"])

	// operator only sees the cutting operation
	op := testutil.GenerateTestToken("u-op", "Operator", "op@test.com")
	w = testutil.DoRequest(r, "GET", "/api/v1/work-order-operations/"+second, nil, op, testutil.TeamID)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	r, _, token := setupHandlerTest(t)
	createOrder(t, r, token)

	w := testutil.DoRequest(r, "GET", "/api/v1/analytics/dashboard", nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	dash := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), dash["total_orders"])

	w = testutil.DoRequest(r, "GET", "/api/v1/analytics/performance?days=abc", nil, token, testutil.TeamID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(r, "GET", "/api/v1/analytics/performance?days=7", nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), testutil.ParseResponse(w)["data"].(map[string]interface{})["days"])

	w = testutil.DoRequest(r, "GET", "/api/v1/analytics/wip/export", nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestFileUploadDownloadEndpoints(t *testing.T) {
	r, _, token := setupHandlerTest(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "inspection.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("ok"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Team-ID", testutil.TeamID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	files := testutil.ParseResponse(w)["data"].(map[string]interface{})["files"].([]interface{})
	require.Len(t, files, 1)
	id := files[0].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, "GET", fmt.Sprintf("/api/v1/files/download/%s", id), nil, token, testutil.TeamID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inspection.txt")

	w = testutil.DoRequest(r, "GET", "/api/v1/files/download/missing", nil, token, testutil.TeamID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
