package service

import (
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func inspectionActivity() entity.DataCollectionActivity {
	return entity.DataCollectionActivity{
		ID:   "act-1",
		Name: "Final inspection",
		Fields: entity.FieldList{
			{Name: "torque", Type: entity.FieldTypeNumber, Required: true, Validation: &entity.FieldValidation{Min: f64(5), Max: f64(20)}},
			{Name: "passed", Type: entity.FieldTypeBoolean, Required: true},
			{Name: "grade", Type: entity.FieldTypeSelect, Validation: &entity.FieldValidation{Options: []string{"A", "B"}}},
			{Name: "serial", Type: entity.FieldTypeText, Validation: &entity.FieldValidation{Pattern: `^SN-\d+$`}},
		},
	}
}

func fieldNames(errs []FieldError) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
}

func TestValidateCapturedDataRequired(t *testing.T) {
	errs := ValidateCapturedData([]entity.DataCollectionActivity{inspectionActivity()}, map[string]interface{}{})
	assert.ElementsMatch(t, []string{"torque", "passed"}, fieldNames(errs))
	for _, e := range errs {
		assert.Equal(t, "is required", e.Message)
	}
}

func TestValidateCapturedDataRules(t *testing.T) {
	data := map[string]interface{}{
		"torque": 25.0,
		"passed": "yes",
		"grade":  "C",
		"serial": "X-1",
	}
	errs := ValidateCapturedData([]entity.DataCollectionActivity{inspectionActivity()}, data)
	assert.ElementsMatch(t, []string{"torque", "passed", "grade", "serial"}, fieldNames(errs))
}

func TestValidateCapturedDataAcceptsValidValues(t *testing.T) {
	data := map[string]interface{}{
		"torque": 12,
		"passed": true,
		"grade":  "A",
		"serial": "SN-42",
	}
	assert.Empty(t, ValidateCapturedData([]entity.DataCollectionActivity{inspectionActivity()}, data))
}

func TestValidateCapturedDataNestedByActivity(t *testing.T) {
	data := map[string]interface{}{
		"act-1": map[string]interface{}{"torque": "10", "passed": false},
	}
	assert.Empty(t, ValidateCapturedData([]entity.DataCollectionActivity{inspectionActivity()}, data))
}

func TestValidateActivityFields(t *testing.T) {
	errs := ValidateActivityFields(entity.FieldList{
		{Name: "a", Type: entity.FieldTypeText},
		{Name: "a", Type: entity.FieldTypeText},
		{Name: "b", Type: "colour"},
		{Name: "c", Type: entity.FieldTypeSelect},
		{Name: "", Type: entity.FieldTypeText},
	})
	require.Len(t, errs, 4)
	assert.Equal(t, "duplicate field name", errs[0].Message)
	assert.Equal(t, "unknown field type colour", errs[1].Message)
	assert.Equal(t, "select field needs options", errs[2].Message)
	assert.Equal(t, "fields[4]", errs[3].Field)
}
