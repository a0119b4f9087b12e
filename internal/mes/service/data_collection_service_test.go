package service_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataCollectionSubmit(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()
	svc := f.env.Services.DataCollection

	maxTemp := 250.0
	activity, err := svc.CreateActivity(ctx, f.admin, service.CreateActivityRequest{
		Name: "Oven log",
		Fields: []entity.CollectionField{
			{Name: "temperature", Type: entity.FieldTypeNumber, Required: true, Validation: &entity.FieldValidation{Max: &maxTemp}},
			{Name: "shift", Type: entity.FieldTypeSelect, Validation: &entity.FieldValidation{Options: []string{"A", "B"}}},
		},
	})
	require.NoError(t, err)

	first := f.order.Operations[0].ID
	sub, err := svc.Submit(ctx, f.admin, service.SubmitRequest{
		WorkOrderOperationID: first,
		ActivityID:           activity.ID,
		Data:                 map[string]interface{}{"temperature": 180.0, "shift": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-admin", sub.SubmittedBy)

	_, err = svc.Submit(ctx, f.admin, service.SubmitRequest{
		WorkOrderOperationID: first,
		ActivityID:           activity.ID,
		Data:                 map[string]interface{}{"temperature": 300.0, "shift": "C"},
	})
	e := appErr(t, err)
	assert.Equal(t, service.CodeValidation, e.Code)
	fields := e.Details.(map[string]interface{})["fields"].([]service.FieldError)
	assert.Len(t, fields, 2)

	assembler := testutil.MemberPrincipal("u-asm", f.deptB.ID)
	_, err = svc.Submit(ctx, assembler, service.SubmitRequest{
		WorkOrderOperationID: first,
		ActivityID:           activity.ID,
		Data:                 map[string]interface{}{"temperature": 100.0},
	})
	assert.True(t, service.IsKind(err, service.KindForbidden))

	_, err = svc.Submit(ctx, f.admin, service.SubmitRequest{
		WorkOrderOperationID: first,
		ActivityID:           "missing",
		Data:                 map[string]interface{}{"temperature": 100.0},
	})
	assert.True(t, service.IsKind(err, service.KindNotFound))

	list, err := svc.ListSubmissions(ctx, f.admin, first)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.apply(t, first, service.WOOActionRequest{Action: "start"})
	require.NoError(t, err)
	_, err = f.apply(t, first, service.WOOActionRequest{Action: "complete"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, f.admin, service.SubmitRequest{
		WorkOrderOperationID: first,
		ActivityID:           activity.ID,
		Data:                 map[string]interface{}{"temperature": 100.0},
	})
	assert.True(t, service.IsKind(err, service.KindConflict))
}

func TestDataCollectionCreateActivityValidation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	admin := testutil.AdminPrincipal("u-admin")

	_, err := env.Services.DataCollection.CreateActivity(ctx, admin, service.CreateActivityRequest{Name: "Empty"})
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = env.Services.DataCollection.CreateActivity(ctx, admin, service.CreateActivityRequest{
		Name:   "Bad",
		Fields: []entity.CollectionField{{Name: "colour", Type: "colour"}},
	})
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = env.Services.DataCollection.CreateActivity(ctx, admin, service.CreateActivityRequest{
		Name:   "Visual",
		Fields: []entity.CollectionField{{Name: "ok", Type: entity.FieldTypeBoolean}},
	})
	require.NoError(t, err)

	items, err := env.Services.DataCollection.ListActivities(ctx, admin, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Visual", items[0].Name)
	assert.Len(t, items[0].Fields, 1)
}

func TestFileUploadDownload(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	admin := testutil.AdminPrincipal("u-admin")

	payload := []byte("serial,torque\nA1,12.5\n")
	file, err := env.Services.File.Upload(ctx, admin, "../../torque.CSV", "text/csv", int64(len(payload)), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "torque.CSV", file.FileName)
	assert.True(t, strings.HasPrefix(file.ObjectKey, testutil.TeamID+"/"))
	assert.True(t, strings.HasSuffix(file.ObjectKey, ".csv"))

	meta, body, err := env.Services.File.Download(ctx, admin, file.ID)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "text/csv", meta.ContentType)

	other := testutil.AdminPrincipal("u-admin")
	other.TeamID = "team-other"
	_, _, err = env.Services.File.Download(ctx, other, file.ID)
	assert.True(t, service.IsKind(err, service.KindNotFound))
}

func TestFileUploadLimits(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := testutil.AdminPrincipal("u-admin")

	big := int64(2 << 20)
	_, err := env.Services.File.Upload(context.Background(), admin, "big.bin", "", big, bytes.NewReader(make([]byte, 16)))
	e := appErr(t, err)
	assert.Equal(t, service.CodeValidation, e.Code)
	assert.Contains(t, e.Message, "1.0 MiB")

	_, err = env.Services.File.Upload(context.Background(), admin, "  ", "", 1, bytes.NewReader([]byte("x")))
	assert.True(t, service.IsKind(err, service.KindValidation))
}

func TestCompleteMergesInterimSubmissions(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()
	svc := f.env.Services.DataCollection

	activity, err := svc.CreateActivity(ctx, f.admin, service.CreateActivityRequest{
		Name: "Torque check",
		Fields: []entity.CollectionField{
			{Name: "torque", Type: entity.FieldTypeNumber, Required: true},
			{Name: "inspector", Type: entity.FieldTypeText, Required: true},
		},
	})
	require.NoError(t, err)
	first := f.order.Operations[0]
	require.NoError(t, f.env.DB.Model(&entity.RoutingOperation{}).
		Where("id = ?", first.RoutingOperationID).
		Update("activity_ids", entity.StringList{activity.ID}).Error)

	_, err = f.apply(t, first.ID, service.WOOActionRequest{Action: "start"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, f.admin, service.SubmitRequest{
		WorkOrderOperationID: first.ID,
		ActivityID:           activity.ID,
		Data:                 map[string]interface{}{"torque": 42.0, "inspector": "lee"},
	})
	require.NoError(t, err)

	// only the changed field is sent on completion
	d, err := f.apply(t, first.ID, service.WOOActionRequest{
		Action:       "complete",
		CapturedData: map[string]interface{}{"inspector": "kim"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.WOOStatusCompleted, d.Status)
	values, ok := d.CapturedData[activity.ID].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 42.0, values["torque"])
	assert.Equal(t, "kim", values["inspector"])
}
