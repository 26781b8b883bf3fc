package idle

import (
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/validator"
)

func (s Settings) Validate() error {
	var errs validator.ValidationErrors

	if s.IdleThresholdMinutes < 1 {
		errs.Add("idle_threshold_minutes", "idle_threshold_minutes must be at least 1")
	}
	if s.WarningTimeMinutes < 0 {
		errs.Add("warning_time_minutes", "warning_time_minutes must not be negative")
	}
	if s.ShowIdleWarning && s.WarningTimeMinutes >= s.IdleThresholdMinutes {
		errs.Add("warning_time_minutes", "warning_time_minutes must be less than idle_threshold_minutes")
	}
	if s.SampleInterval < time.Second {
		errs.Add("sample_interval", "sample_interval must be at least 1s")
	}

	return errs.Err()
}

type ManualStartRequest struct {
	Note string `json:"note"`
}
