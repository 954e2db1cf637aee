package compliance

import (
	"fmt"
	"time"
)

const (
	MinScanIntervalMinutes     = 1
	MaxScanIntervalMinutes     = 1440
	DefaultScanIntervalMinutes = 60

	// FallbackInterval is waited when auto scan is disabled or its config is unreadable.
	FallbackInterval = 5 * time.Minute
)

type SystemConfig struct {
	AutoScanEnabled     bool
	ScanIntervalMinutes int
}

func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		AutoScanEnabled:     false,
		ScanIntervalMinutes: DefaultScanIntervalMinutes,
	}
}

func (c SystemConfig) Interval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}

func ValidateScanInterval(minutes int) error {
	if minutes < MinScanIntervalMinutes || minutes > MaxScanIntervalMinutes {
		return fmt.Errorf("%w: got %d", ErrInvalidScanInterval, minutes)
	}
	return nil
}

// SystemConfigUpdate is a partial update; nil fields are left unchanged.
type SystemConfigUpdate struct {
	AutoScanEnabled     *bool
	ScanIntervalMinutes *int
}

// Apply validates the update before returning the changed config.
func (c SystemConfig) Apply(update SystemConfigUpdate) (SystemConfig, error) {
	next := c
	if update.ScanIntervalMinutes != nil {
		if err := ValidateScanInterval(*update.ScanIntervalMinutes); err != nil {
			return c, err
		}
		next.ScanIntervalMinutes = *update.ScanIntervalMinutes
	}
	if update.AutoScanEnabled != nil {
		next.AutoScanEnabled = *update.AutoScanEnabled
	}
	return next, nil
}
