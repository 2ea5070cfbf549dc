// Package config defines the BBSHD/BBS02 motor controller configuration
// record and its fixed binary layout.
package config

import "fmt"

const (
	// Version is the configuration layout version this package implements.
	Version byte = 5
	// Size is the serialized length of a Config record in bytes.
	Size = 39
	// MaxAssistLevels is the number of assist level slots in the record.
	MaxAssistLevels = 10
)

const (
	flagImperialUnits = 1 << iota
	flagPushWalk
	flagTempSensor
)

// Config is the controller configuration record, layout version 5.
type Config struct {
	ImperialUnits bool `toml:"imperial_units" json:"imperial_units"`
	PushWalk      bool `toml:"push_walk" json:"push_walk"`
	TempSensor    bool `toml:"temp_sensor" json:"temp_sensor"`

	MaxCurrentAmps     byte `toml:"max_current_amps" json:"max_current_amps"`
	CurrentRampAmpsSec byte `toml:"current_ramp_amps_sec" json:"current_ramp_amps_sec"`
	LowCutoffVolts     byte `toml:"low_cutoff_volts" json:"low_cutoff_volts"`

	MaxSpeedKph          byte   `toml:"max_speed_kph" json:"max_speed_kph"`
	WheelCircumferenceMm uint16 `toml:"wheel_circumference_mm" json:"wheel_circumference_mm"`
	SpeedSensorSignals   byte   `toml:"speed_sensor_signals" json:"speed_sensor_signals"`

	PASStartDelayDeg      byte `toml:"pas_start_delay_deg" json:"pas_start_delay_deg"`
	PASStopDelayMs10      byte `toml:"pas_stop_delay_ms10" json:"pas_stop_delay_ms10"`
	PASKeepCurrentPercent byte `toml:"pas_keep_current_percent" json:"pas_keep_current_percent"`

	ThrottleStartMv           uint16 `toml:"throttle_start_mv" json:"throttle_start_mv"`
	ThrottleEndMv             uint16 `toml:"throttle_end_mv" json:"throttle_end_mv"`
	ThrottleStartPercent      byte   `toml:"throttle_start_percent" json:"throttle_start_percent"`
	ThrottleMaxCurrentPercent byte   `toml:"throttle_max_current_percent" json:"throttle_max_current_percent"`

	MotorTempLimitC byte `toml:"motor_temp_limit_c" json:"motor_temp_limit_c"`

	AssistLevelCount byte          `toml:"assist_level_count" json:"assist_level_count"`
	AssistLevels     []AssistLevel `toml:"assist_levels" json:"assist_levels"`
}

// AssistLevel sets the power envelope of one assist level slot.
type AssistLevel struct {
	CurrentPercent byte `toml:"current_percent" json:"current_percent"`
	SpeedPercent   byte `toml:"speed_percent" json:"speed_percent"`
}

// MarshalBinary serializes the record into its fixed EEPROM layout.
//
//	0      flag bits (imperial units, push walk, temp sensor)
//	1      max current [A]
//	2      current ramp [A/s]
//	3      low voltage cutoff [V]
//	4      max speed [km/h]
//	5-6    wheel circumference [mm], little-endian
//	7      speed sensor signals per revolution
//	8      pas start delay [deg]
//	9      pas stop delay [10 ms]
//	10     pas keep current [%]
//	11-12  throttle start voltage [mV], little-endian
//	13-14  throttle end voltage [mV], little-endian
//	15     throttle start [%]
//	16     throttle max current [%]
//	17     motor temperature limit [C]
//	18     assist level count
//	19-38  assist level slots, current/speed percent pairs
func (c *Config) MarshalBinary() ([]byte, error) {
	if len(c.AssistLevels) > MaxAssistLevels {
		return nil, fmt.Errorf("too many assist levels: %d", len(c.AssistLevels))
	}
	b := make([]byte, Size)
	if c.ImperialUnits {
		b[0] |= flagImperialUnits
	}
	if c.PushWalk {
		b[0] |= flagPushWalk
	}
	if c.TempSensor {
		b[0] |= flagTempSensor
	}
	b[1] = c.MaxCurrentAmps
	b[2] = c.CurrentRampAmpsSec
	b[3] = c.LowCutoffVolts
	b[4] = c.MaxSpeedKph
	b[5] = byte(c.WheelCircumferenceMm)
	b[6] = byte(c.WheelCircumferenceMm >> 8)
	b[7] = c.SpeedSensorSignals
	b[8] = c.PASStartDelayDeg
	b[9] = c.PASStopDelayMs10
	b[10] = c.PASKeepCurrentPercent
	b[11] = byte(c.ThrottleStartMv)
	b[12] = byte(c.ThrottleStartMv >> 8)
	b[13] = byte(c.ThrottleEndMv)
	b[14] = byte(c.ThrottleEndMv >> 8)
	b[15] = c.ThrottleStartPercent
	b[16] = c.ThrottleMaxCurrentPercent
	b[17] = c.MotorTempLimitC
	b[18] = c.AssistLevelCount
	for i, lvl := range c.AssistLevels {
		b[19+2*i] = lvl.CurrentPercent
		b[20+2*i] = lvl.SpeedPercent
	}
	return b, nil
}

// UnmarshalBinary fills the record from its serialized form. All
// MaxAssistLevels slots are decoded regardless of the level count.
func (c *Config) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("config record must be %d bytes, got %d", Size, len(data))
	}
	c.ImperialUnits = data[0]&flagImperialUnits != 0
	c.PushWalk = data[0]&flagPushWalk != 0
	c.TempSensor = data[0]&flagTempSensor != 0
	c.MaxCurrentAmps = data[1]
	c.CurrentRampAmpsSec = data[2]
	c.LowCutoffVolts = data[3]
	c.MaxSpeedKph = data[4]
	c.WheelCircumferenceMm = uint16(data[6])<<8 | uint16(data[5])
	c.SpeedSensorSignals = data[7]
	c.PASStartDelayDeg = data[8]
	c.PASStopDelayMs10 = data[9]
	c.PASKeepCurrentPercent = data[10]
	c.ThrottleStartMv = uint16(data[12])<<8 | uint16(data[11])
	c.ThrottleEndMv = uint16(data[14])<<8 | uint16(data[13])
	c.ThrottleStartPercent = data[15]
	c.ThrottleMaxCurrentPercent = data[16]
	c.MotorTempLimitC = data[17]
	c.AssistLevelCount = data[18]
	c.AssistLevels = make([]AssistLevel, MaxAssistLevels)
	for i := range c.AssistLevels {
		c.AssistLevels[i] = AssistLevel{
			CurrentPercent: data[19+2*i],
			SpeedPercent:   data[20+2*i],
		}
	}
	return nil
}

// Validate checks the record against the ranges the firmware accepts. Only
// assist level slots below AssistLevelCount are checked; a record read back
// from the controller may carry stale bytes in the unused slots.
func (c *Config) Validate() error {
	if c.MaxCurrentAmps < 1 || c.MaxCurrentAmps > 33 {
		return fmt.Errorf("max_current_amps must be 1-33, got %d", c.MaxCurrentAmps)
	}
	if c.CurrentRampAmpsSec < 1 {
		return fmt.Errorf("current_ramp_amps_sec must be at least 1")
	}
	if c.LowCutoffVolts < 10 || c.LowCutoffVolts > 100 {
		return fmt.Errorf("low_cutoff_volts must be 10-100, got %d", c.LowCutoffVolts)
	}
	if c.WheelCircumferenceMm < 500 || c.WheelCircumferenceMm > 3000 {
		return fmt.Errorf("wheel_circumference_mm must be 500-3000, got %d", c.WheelCircumferenceMm)
	}
	if c.SpeedSensorSignals < 1 {
		return fmt.Errorf("speed_sensor_signals must be at least 1")
	}
	if c.ThrottleEndMv <= c.ThrottleStartMv {
		return fmt.Errorf("throttle_end_mv (%d) must be above throttle_start_mv (%d)", c.ThrottleEndMv, c.ThrottleStartMv)
	}
	if c.ThrottleEndMv > 5000 {
		return fmt.Errorf("throttle_end_mv must be at most 5000, got %d", c.ThrottleEndMv)
	}
	if c.ThrottleStartPercent > 100 {
		return fmt.Errorf("throttle_start_percent must be at most 100, got %d", c.ThrottleStartPercent)
	}
	if c.ThrottleMaxCurrentPercent < 1 || c.ThrottleMaxCurrentPercent > 100 {
		return fmt.Errorf("throttle_max_current_percent must be 1-100, got %d", c.ThrottleMaxCurrentPercent)
	}
	if c.PASKeepCurrentPercent > 100 {
		return fmt.Errorf("pas_keep_current_percent must be at most 100, got %d", c.PASKeepCurrentPercent)
	}
	if len(c.AssistLevels) > MaxAssistLevels {
		return fmt.Errorf("assist_levels lists %d entries, at most %d fit", len(c.AssistLevels), MaxAssistLevels)
	}
	if c.AssistLevelCount < 1 || c.AssistLevelCount > MaxAssistLevels {
		return fmt.Errorf("assist_level_count must be 1-%d, got %d", MaxAssistLevels, c.AssistLevelCount)
	}
	if int(c.AssistLevelCount) > len(c.AssistLevels) {
		return fmt.Errorf("assist_level_count is %d but only %d assist_levels are defined", c.AssistLevelCount, len(c.AssistLevels))
	}
	for i, lvl := range c.AssistLevels[:c.AssistLevelCount] {
		if lvl.CurrentPercent > 100 {
			return fmt.Errorf("assist_levels[%d]: current_percent must be at most 100, got %d", i, lvl.CurrentPercent)
		}
		if lvl.SpeedPercent > 100 {
			return fmt.Errorf("assist_levels[%d]: speed_percent must be at most 100, got %d", i, lvl.SpeedPercent)
		}
	}
	return nil
}

// Codec adapts Config to the generic wire codec the session expects.
type Codec struct{}

// Version returns the layout version tag exchanged in config frame headers.
func (Codec) Version() byte { return Version }

// Size returns the serialized record length.
func (Codec) Size() int { return Size }

// Decode deserializes a record received from the controller.
func (Codec) Decode(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := cfg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode validates and serializes a record for transmission. Rejecting
// out-of-range values here keeps them off the wire entirely.
func (Codec) Encode(cfg *Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.MarshalBinary()
}
