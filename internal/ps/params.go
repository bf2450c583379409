package ps

import "fmt"

// Firmware sleep profiles.
const (
	SleepTypeLP  uint32 = 1 // low power: RF gated, MAC stays responsive
	SleepTypeULP uint32 = 2 // ultra low power: deep sleep, wakeup period applies
)

// Params is the power-save parameter table handed to the firmware alongside
// an enable request. The controller treats it as opaque; the config layer
// owns defaults, overrides and validation. Intervals are in milliseconds,
// thresholds in packets per second.
type Params struct {
	Enabled               bool   `yaml:"enabled" json:"enabled"`
	SleepType             uint32 `yaml:"sleepType" json:"sleepType"`
	TxThreshold           uint32 `yaml:"txThreshold" json:"txThreshold"`
	RxThreshold           uint32 `yaml:"rxThreshold" json:"rxThreshold"`
	TxHysteresis          uint32 `yaml:"txHysteresis" json:"txHysteresis"`
	RxHysteresis          uint32 `yaml:"rxHysteresis" json:"rxHysteresis"`
	MonitorInterval       uint32 `yaml:"monitorInterval" json:"monitorInterval"`
	ListenInterval        uint32 `yaml:"listenInterval" json:"listenInterval"`
	NumBeaconsPerListen   uint32 `yaml:"numBeaconsPerListen" json:"numBeaconsPerListen"`
	DTIMIntervalDuration  uint32 `yaml:"dtimIntervalDuration" json:"dtimIntervalDuration"`
	NumDTIMsPerSleep      uint32 `yaml:"numDtimsPerSleep" json:"numDtimsPerSleep"`
	DeepSleepWakeupPeriod uint32 `yaml:"deepSleepWakeupPeriod" json:"deepSleepWakeupPeriod"`
}

// DefaultParams returns the firmware's documented power-save defaults:
// LP sleep, a 200 ms listen interval and a 100 ms deep-sleep wakeup period,
// with every threshold and hysteresis left at zero.
func DefaultParams() Params {
	return Params{
		Enabled:               true,
		SleepType:             SleepTypeLP,
		ListenInterval:        200,
		DeepSleepWakeupPeriod: 100,
	}
}

// Validate checks the parameter table for values the firmware would reject.
func (p Params) Validate() error {
	if p.SleepType != SleepTypeLP && p.SleepType != SleepTypeULP {
		return fmt.Errorf("invalid sleep type %d (want %d LP or %d ULP)", p.SleepType, SleepTypeLP, SleepTypeULP)
	}
	if p.Enabled && p.ListenInterval == 0 {
		return fmt.Errorf("listen interval must be positive when power save is enabled")
	}
	if p.SleepType == SleepTypeULP && p.DeepSleepWakeupPeriod == 0 {
		return fmt.Errorf("deep-sleep wakeup period must be positive for ULP sleep")
	}
	return nil
}
