package execution

// Health is the coarse status derived from a health score
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Score weights and status thresholds. These feed the health status shown to
// users; changing them needs product sign-off.
const (
	successWeight = 0.6
	failureWeight = 0.3
	timeoutWeight = 0.1

	HealthyThreshold = 80.0
	WarningThreshold = 50.0
)

// Counts is an execution history tally
type Counts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Timeout int `json:"timeout"`
	Skipped int `json:"skipped"`
}

// Add increments the tally for status. Unknown statuses are ignored.
func (c *Counts) Add(status Status) {
	switch status {
	case StatusSuccess:
		c.Success++
	case StatusFailed:
		c.Failed++
	case StatusTimeout:
		c.Timeout++
	case StatusSkipped:
		c.Skipped++
	}
}

// Total returns the number of tallied executions
func (c Counts) Total() int {
	return c.Success + c.Failed + c.Timeout + c.Skipped
}

// HealthScore returns a score in [0,100]:
//
//	success% * 0.6 + (100 - failure%) * 0.3 + (100 - timeout%) * 0.1
//
// A task with no executions scores 100.
func HealthScore(c Counts) float64 {
	total := c.Total()
	if total == 0 {
		return 100
	}

	rate := func(n int) float64 {
		return float64(n) / float64(total) * 100
	}

	score := rate(c.Success)*successWeight +
		(100-rate(c.Failed))*failureWeight +
		(100-rate(c.Timeout))*timeoutWeight

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// HealthStatus maps a score onto a Health status
func HealthStatus(score float64) Health {
	switch {
	case score >= HealthyThreshold:
		return HealthHealthy
	case score >= WarningThreshold:
		return HealthWarning
	default:
		return HealthCritical
	}
}
