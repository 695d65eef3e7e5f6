package scheduler

import (
	"time"

	"github.com/muaviaUsmani/tempo/internal/config"
	"github.com/muaviaUsmani/tempo/internal/metrics"
	"github.com/muaviaUsmani/tempo/internal/serialization"
	"github.com/muaviaUsmani/tempo/pkg/retry"
)

// Options tunes a Planner
type Options struct {
	KeyPrefix          string
	Interval           time.Duration
	BatchSize          int
	LockTTL            time.Duration
	LockWait           time.Duration
	OutcomeDedupeTTL   time.Duration
	DefaultRetry       retry.Policy
	DefaultTimezone    string
	RejectConflicts    bool
	StrictDependencies bool
	StateFormat        serialization.Format

	// Metrics receives outcome tallies (default: metrics.Default())
	Metrics *metrics.Collector
}

// DefaultOptions mirrors config.Default()
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig builds planner options from loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		KeyPrefix:          cfg.KeyPrefix,
		Interval:           cfg.PlannerInterval,
		BatchSize:          cfg.PlannerBatchSize,
		LockTTL:            cfg.LockTTL,
		LockWait:           cfg.LockWait,
		OutcomeDedupeTTL:   cfg.OutcomeDedupeTTL,
		DefaultRetry:       cfg.Retry.Policy(),
		DefaultTimezone:    cfg.DefaultTimezone,
		RejectConflicts:    cfg.RejectConflicts,
		StrictDependencies: cfg.StrictDependencies,
		StateFormat:        serialization.FormatProtobuf,
	}
}

func (o Options) withDefaults() Options {
	d := config.Default()
	if o.KeyPrefix == "" {
		o.KeyPrefix = d.KeyPrefix
	}
	if o.Interval <= 0 {
		o.Interval = d.PlannerInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.PlannerBatchSize
	}
	if o.LockTTL <= 0 {
		o.LockTTL = d.LockTTL
	}
	if o.LockWait < 0 {
		o.LockWait = 0
	}
	if o.OutcomeDedupeTTL <= 0 {
		o.OutcomeDedupeTTL = d.OutcomeDedupeTTL
	}
	if o.DefaultRetry == (retry.Policy{}) {
		o.DefaultRetry = retry.DefaultPolicy()
	}
	if o.DefaultTimezone == "" {
		o.DefaultTimezone = "UTC"
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default()
	}
	return o
}
