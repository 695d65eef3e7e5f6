package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// recurrenceSchema describes the JSON document form of a Recurrence. It checks
// shape and required fields per variant; numeric ranges are left to
// CompileTrigger so that range errors name the offending field.
const recurrenceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "oneOf": [
    {"properties": {"type": {"enum": ["none"]}}, "additionalProperties": false},
    {
      "properties": {"type": {"enum": ["daily"]}, "hour": {"type": "integer"}, "minute": {"type": "integer"}},
      "required": ["hour", "minute"],
      "additionalProperties": false
    },
    {
      "properties": {"type": {"enum": ["weekly"]}, "dayOfWeek": {"type": "integer"}, "hour": {"type": "integer"}, "minute": {"type": "integer"}},
      "required": ["dayOfWeek", "hour", "minute"],
      "additionalProperties": false
    },
    {
      "properties": {"type": {"enum": ["monthly"]}, "dayOfMonth": {"type": "integer"}, "hour": {"type": "integer"}, "minute": {"type": "integer"}},
      "required": ["dayOfMonth", "hour", "minute"],
      "additionalProperties": false
    },
    {
      "properties": {"type": {"enum": ["every_n_minutes"]}, "minutes": {"type": "integer"}},
      "required": ["minutes"],
      "additionalProperties": false
    },
    {
      "properties": {"type": {"enum": ["every_n_hours"]}, "hours": {"type": "integer"}, "startMinute": {"type": "integer"}},
      "required": ["hours"],
      "additionalProperties": false
    },
    {
      "properties": {"type": {"enum": ["custom"]}, "expression": {"type": "string", "minLength": 1}},
      "required": ["expression"],
      "additionalProperties": false
    }
  ]
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(recurrenceSchema))
	})
	return schema, schemaErr
}

// document is the wire form of a Recurrence
type document struct {
	Type        Kind   `json:"type"`
	DayOfWeek   *int   `json:"dayOfWeek,omitempty"`
	DayOfMonth  *int   `json:"dayOfMonth,omitempty"`
	Hour        *int   `json:"hour,omitempty"`
	Minute      *int   `json:"minute,omitempty"`
	Minutes     *int   `json:"minutes,omitempty"`
	Hours       *int   `json:"hours,omitempty"`
	StartMinute *int   `json:"startMinute,omitempty"`
	Expression  string `json:"expression,omitempty"`
}

// DecodeRecurrence parses and schema-validates a recurrence document such as
//
//	{"type":"weekly","dayOfWeek":1,"hour":10,"minute":30}
func DecodeRecurrence(data []byte) (Recurrence, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load recurrence schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	switch doc.Type {
	case KindNone:
		return None{}, nil
	case KindDaily:
		return Daily{Hour: *doc.Hour, Minute: *doc.Minute}, nil
	case KindWeekly:
		return Weekly{DayOfWeek: *doc.DayOfWeek, Hour: *doc.Hour, Minute: *doc.Minute}, nil
	case KindMonthly:
		return Monthly{DayOfMonth: *doc.DayOfMonth, Hour: *doc.Hour, Minute: *doc.Minute}, nil
	case KindEveryNMinutes:
		return EveryNMinutes{Minutes: *doc.Minutes}, nil
	case KindEveryNHours:
		r := EveryNHours{Hours: *doc.Hours}
		if doc.StartMinute != nil {
			r.StartMinute = *doc.StartMinute
		}
		return r, nil
	case KindCustom:
		return Custom{Expression: doc.Expression}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDocument, doc.Type)
	}
}

// MarshalRecurrence encodes a recurrence into its document form
func MarshalRecurrence(r Recurrence) ([]byte, error) {
	var doc document
	switch spec := r.(type) {
	case nil, None:
		doc.Type = KindNone
	case Daily:
		doc = document{Type: KindDaily, Hour: intPtr(spec.Hour), Minute: intPtr(spec.Minute)}
	case Weekly:
		doc = document{Type: KindWeekly, DayOfWeek: intPtr(spec.DayOfWeek), Hour: intPtr(spec.Hour), Minute: intPtr(spec.Minute)}
	case Monthly:
		doc = document{Type: KindMonthly, DayOfMonth: intPtr(spec.DayOfMonth), Hour: intPtr(spec.Hour), Minute: intPtr(spec.Minute)}
	case EveryNMinutes:
		doc = document{Type: KindEveryNMinutes, Minutes: intPtr(spec.Minutes)}
	case EveryNHours:
		doc = document{Type: KindEveryNHours, Hours: intPtr(spec.Hours), StartMinute: intPtr(spec.StartMinute)}
	case Custom:
		doc = document{Type: KindCustom, Expression: spec.Expression}
	default:
		return nil, fmt.Errorf("unsupported recurrence type %T", r)
	}
	return json.Marshal(doc)
}

func intPtr(v int) *int {
	return &v
}
