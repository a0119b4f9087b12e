package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// ValidateCapturedData checks data against every activity's field schema and
// returns one FieldError per failing field. Values for an activity may be
// nested under its ID; otherwise they are read from the top level.
func ValidateCapturedData(activities []entity.DataCollectionActivity, data map[string]interface{}) []FieldError {
	var errs []FieldError
	for _, activity := range activities {
		values := activityValues(activity, data)
		for _, field := range activity.Fields {
			if msg := validateField(field, values[field.Name]); msg != "" {
				errs = append(errs, FieldError{Field: field.Name, Message: msg})
			}
		}
	}
	return errs
}

// activityValues 取某活动的采集值：优先按活动ID嵌套，否则取顶层
func activityValues(activity entity.DataCollectionActivity, data map[string]interface{}) map[string]interface{} {
	if nested, ok := data[activity.ID].(map[string]interface{}); ok {
		return nested
	}
	return data
}

// mergeInterimData folds interim submissions (oldest first) under each
// activity ID. Values already present in data win over interim ones.
func mergeInterimData(activities []entity.DataCollectionActivity, submissions []entity.DataCollectionSubmission, data entity.JSONB) entity.JSONB {
	if len(submissions) == 0 {
		return data
	}
	byID := make(map[string]entity.DataCollectionActivity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}
	interim := make(map[string]map[string]interface{})
	for _, sub := range submissions {
		activity, ok := byID[sub.ActivityID]
		if !ok {
			continue
		}
		values := interim[activity.ID]
		if values == nil {
			values = make(map[string]interface{})
			interim[activity.ID] = values
		}
		submitted := activityValues(activity, map[string]interface{}(sub.Data))
		for _, field := range activity.Fields {
			if v, ok := submitted[field.Name]; ok {
				values[field.Name] = v
			}
		}
	}
	for id, values := range interim {
		current := activityValues(byID[id], map[string]interface{}(data))
		for _, field := range byID[id].Fields {
			if v, ok := current[field.Name]; ok {
				values[field.Name] = v
			}
		}
		data[id] = values
	}
	return data
}

// ValidateActivityFields 校验活动字段定义本身
func ValidateActivityFields(fields entity.FieldList) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool)
	for i, f := range fields {
		key := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, FieldError{Field: key, Message: "name is required"})
			continue
		}
		if seen[f.Name] {
			errs = append(errs, FieldError{Field: f.Name, Message: "duplicate field name"})
		}
		seen[f.Name] = true
		if !containsString(entity.FieldTypes, f.Type) {
			errs = append(errs, FieldError{Field: f.Name, Message: "unknown field type " + f.Type})
		}
		if f.Type == entity.FieldTypeSelect && (f.Validation == nil || len(f.Validation.Options) == 0) {
			errs = append(errs, FieldError{Field: f.Name, Message: "select field needs options"})
		}
		if f.Validation != nil && f.Validation.Pattern != "" {
			if _, err := regexp.Compile(f.Validation.Pattern); err != nil {
				errs = append(errs, FieldError{Field: f.Name, Message: "invalid pattern"})
			}
		}
	}
	return errs
}

func validateField(field entity.CollectionField, value interface{}) string {
	if isBlank(value) {
		if field.Required {
			return "is required"
		}
		return ""
	}

	rules := field.Validation
	switch field.Type {
	case entity.FieldTypeNumber:
		n, ok := toFloat(value)
		if !ok {
			return "must be a number"
		}
		if rules != nil && rules.Min != nil && n < *rules.Min {
			return fmt.Sprintf("must be >= %v", *rules.Min)
		}
		if rules != nil && rules.Max != nil && n > *rules.Max {
			return fmt.Sprintf("must be <= %v", *rules.Max)
		}
	case entity.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return "must be true or false"
		}
	case entity.FieldTypeSelect:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if rules != nil && len(rules.Options) > 0 && !containsString(rules.Options, s) {
			return "must be one of " + strings.Join(rules.Options, ", ")
		}
	case entity.FieldTypeDate:
		s, ok := value.(string)
		if !ok {
			return "must be a date"
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				return "must be a date (YYYY-MM-DD)"
			}
		}
	case entity.FieldTypeTime:
		s, ok := value.(string)
		if !ok {
			return "must be a time"
		}
		if _, err := time.Parse("15:04", s); err != nil {
			if _, err := time.Parse("15:04:05", s); err != nil {
				return "must be a time (HH:MM)"
			}
		}
	default:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if rules != nil && rules.Pattern != "" {
			re, err := regexp.Compile(rules.Pattern)
			if err != nil || !re.MatchString(s) {
				return "does not match pattern"
			}
		}
		if rules != nil && rules.Min != nil && float64(len([]rune(s))) < *rules.Min {
			return fmt.Sprintf("must be at least %v characters", *rules.Min)
		}
		if rules != nil && rules.Max != nil && float64(len([]rune(s))) > *rules.Max {
			return fmt.Sprintf("must be at most %v characters", *rules.Max)
		}
	}
	return ""
}

func isBlank(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
