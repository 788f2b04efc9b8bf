package service

import (
	"reflect"
	"strings"
	"time"

	"github.com/noah-isme/casework-api/internal/models"
)

const (
	intakeAgentIDField = "intakeAgentId"
	intakeAgentLabel   = "intakeAgent"
	dayLayout          = "2006-01-02"
)

// Fields that never appear in an audit diff.
var diffIgnoredFields = map[string]struct{}{
	"id":            {},
	"createdAt":     {},
	"updatedAt":     {},
	"createdBy":     {},
	"urgencyWeight": {},
	"description":   {},
	"observations":  {},
}

var dateStringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dayLayout,
}

// FieldChange is the before/after pair of one audited field.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// CaseChanges maps field names to their change.
type CaseChanges map[string]FieldChange

// Before returns the previous value of every changed field.
func (c CaseChanges) Before() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for field, change := range c {
		out[field] = change.From
	}
	return out
}

// After returns the new value of every changed field.
func (c CaseChanges) After() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for field, change := range c {
		out[field] = change.To
	}
	return out
}

// NameLookup resolves a user id into a display name.
type NameLookup func(userID string) string

// ComputeCaseChanges reports the audited differences between two versions of a case.
// Date values are compared by UTC calendar day, empty values (nil, "", zero time)
// are interchangeable, and a changed intake agent is reported by name under
// "intakeAgent" when lookup is provided.
func ComputeCaseChanges(previous, next *models.Case, lookup NameLookup) CaseChanges {
	changes := ComputeChanges(previous, next)
	if change, ok := changes[intakeAgentIDField]; ok && lookup != nil {
		delete(changes, intakeAgentIDField)
		changes[intakeAgentLabel] = FieldChange{
			From: lookupName(lookup, change.From),
			To:   lookupName(lookup, change.To),
		}
	}
	return changes
}

// ComputeChanges diffs two structs of the same type field by field, keyed by
// their JSON names.
func ComputeChanges(previous, next interface{}) CaseChanges {
	changes := CaseChanges{}
	prevFields := fieldValues(previous)
	for name, to := range fieldValues(next) {
		if _, ignored := diffIgnoredFields[name]; ignored {
			continue
		}
		from := prevFields[name]
		if equalForAudit(from, to) {
			continue
		}
		changes[name] = FieldChange{From: displayValue(from), To: displayValue(to)}
	}
	return changes
}

func fieldValues(v interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return out
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return out
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "" {
			continue
		}
		out[name] = plainValue(rv.Field(i))
	}
	return out
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return field.Name
	}
	return name
}

// plainValue dereferences pointers and unwraps named string types.
func plainValue(v reflect.Value) interface{} {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if t, ok := v.Interface().(time.Time); ok {
		return t
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return v.Interface()
}

func equalForAudit(a, b interface{}) bool {
	aEmpty, bEmpty := isEmptyValue(a), isEmptyValue(b)
	if aEmpty || bEmpty {
		return aEmpty && bEmpty
	}
	if dayA, ok := asDay(a); ok {
		if dayB, ok := asDay(b); ok {
			return dayA == dayB
		}
	}
	return reflect.DeepEqual(a, b)
}

func isEmptyValue(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case time.Time:
		return value.IsZero()
	}
	return false
}

// asDay returns the UTC calendar day of time values and date-formatted strings.
func asDay(v interface{}) (string, bool) {
	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(dayLayout), true
	case string:
		for _, layout := range dateStringLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC().Format(dayLayout), true
			}
		}
	}
	return "", false
}

func displayValue(v interface{}) interface{} {
	if isEmptyValue(v) {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(dayLayout)
	}
	return v
}

func lookupName(lookup NameLookup, id interface{}) interface{} {
	s, ok := id.(string)
	if !ok || s == "" {
		return nil
	}
	return lookup(s)
}
