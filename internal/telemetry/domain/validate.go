package telemetry

import (
	"fmt"
	"strings"
)

// Domain ranges for a plausible sensor reading. Inclusive on both ends.
const (
	TemperatureMin = -20.0
	TemperatureMax = 50.0
	HumidityMin    = 0.0
	HumidityMax    = 100.0
	BatteryMin     = 0.0
	BatteryMax     = 100.0
)

// Validate checks a decoded reading against the domain ranges. It is pure and
// short-circuits on the first violated rule, checked in a fixed order: device
// id, temperature, humidity, battery. Failures wrap ErrValidation.
func Validate(r Reading) error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return fmt.Errorf("%w: device id is empty", ErrValidation)
	}
	if r.Temperature < TemperatureMin || r.Temperature > TemperatureMax {
		return fmt.Errorf("%w: temperature %g out of range [%g, %g]", ErrValidation, r.Temperature, TemperatureMin, TemperatureMax)
	}
	if r.Humidity < HumidityMin || r.Humidity > HumidityMax {
		return fmt.Errorf("%w: humidity %g out of range [%g, %g]", ErrValidation, r.Humidity, HumidityMin, HumidityMax)
	}
	if r.Battery < BatteryMin || r.Battery > BatteryMax {
		return fmt.Errorf("%w: battery %g out of range [%g, %g]", ErrValidation, r.Battery, BatteryMin, BatteryMax)
	}
	return nil
}
