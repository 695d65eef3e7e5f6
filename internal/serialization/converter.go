package serialization

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

// Struct field names. Instants are RFC 3339 strings and durations use
// time.Duration's string form, so neither loses precision through the
// float64 number type of structpb.
const (
	fieldNextRunAt           = "next_run_at"
	fieldLastRunAt           = "last_run_at"
	fieldExecutionCount      = "execution_count"
	fieldLastStatus          = "last_execution_status"
	fieldLastDuration        = "last_execution_duration"
	fieldConsecutiveFailures = "consecutive_failures"
)

// StateToStruct converts s into a protobuf Struct
func StateToStruct(s execution.State) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		fieldExecutionCount:      s.ExecutionCount,
		fieldConsecutiveFailures: s.ConsecutiveFailures,
		fieldLastDuration:        s.LastExecutionDuration.String(),
	}
	if s.NextRunAt != nil {
		fields[fieldNextRunAt] = s.NextRunAt.UTC().Format(time.RFC3339Nano)
	}
	if s.LastRunAt != nil {
		fields[fieldLastRunAt] = s.LastRunAt.UTC().Format(time.RFC3339Nano)
	}
	if s.LastExecutionStatus != "" {
		fields[fieldLastStatus] = string(s.LastExecutionStatus)
	}
	return structpb.NewStruct(fields)
}

// StructToState converts a Struct written by StateToStruct back into a State
func StructToState(msg *structpb.Struct) (execution.State, error) {
	var s execution.State
	f := msg.GetFields()

	var err error
	if s.NextRunAt, err = instantField(f, fieldNextRunAt); err != nil {
		return s, err
	}
	if s.LastRunAt, err = instantField(f, fieldLastRunAt); err != nil {
		return s, err
	}

	s.ExecutionCount = int(f[fieldExecutionCount].GetNumberValue())
	s.ConsecutiveFailures = int(f[fieldConsecutiveFailures].GetNumberValue())

	if v, ok := f[fieldLastStatus]; ok {
		status := execution.Status(v.GetStringValue())
		if !status.Valid() {
			return s, fmt.Errorf("invalid %s %q", fieldLastStatus, status)
		}
		s.LastExecutionStatus = status
	}

	if v, ok := f[fieldLastDuration]; ok {
		d, err := time.ParseDuration(v.GetStringValue())
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", fieldLastDuration, err)
		}
		s.LastExecutionDuration = d
	}

	return s, nil
}

func instantField(fields map[string]*structpb.Value, name string) (*time.Time, error) {
	v, ok := fields[name]
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &t, nil
}
