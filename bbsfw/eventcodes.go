package bbsfw

import "fmt"

// Event codes logged by the firmware. Codes below 0x10 are status messages,
// 0x10-0x3f are faults, 0x40 and up are periodic data samples carried in the
// 16-bit payload of an event-log-with-data frame.
const (
	EventMsgMotorInitOK byte = 0x01
	EventMsgConfigRead  byte = 0x02
	EventMsgConfigWrite byte = 0x03
	EventMsgConfigReset byte = 0x04

	EventErrorInitMotor           byte = 0x10
	EventErrorChangeTargetCurrent byte = 0x11
	EventErrorChangeTargetSpeed   byte = 0x12
	EventErrorReadMotorStatus     byte = 0x13
	EventErrorReadMotorCurrent    byte = 0x14
	EventErrorReadMotorVoltage    byte = 0x15
	EventErrorConfigReadEeprom    byte = 0x16
	EventErrorConfigWriteEeprom   byte = 0x17
	EventErrorConfigVersion       byte = 0x18
	EventErrorConfigChecksum      byte = 0x19
	EventErrorThrottleLowLimit    byte = 0x1a
	EventErrorThrottleHighLimit   byte = 0x1b
	EventErrorWatchdogTriggered   byte = 0x1c

	EventDataAssistLevel     byte = 0x40
	EventDataOperationMode   byte = 0x41
	EventDataWheelSpeedPPM   byte = 0x42
	EventDataLVCLimiting     byte = 0x43
	EventDataThermalLimiting byte = 0x44
	EventDataSpeedLimiting   byte = 0x45
	EventDataMaxCurrentADC   byte = 0x46
	EventDataMainLoopTime    byte = 0x47
	EventDataThrottleADC     byte = 0x48
	EventDataLVCVoltage      byte = 0x49
	EventDataTemperature     byte = 0x4a
)

var eventNames = map[byte]string{
	EventMsgMotorInitOK: "motor init ok",
	EventMsgConfigRead:  "config read",
	EventMsgConfigWrite: "config written",
	EventMsgConfigReset: "config reset to defaults",

	EventErrorInitMotor:           "motor init failed",
	EventErrorChangeTargetCurrent: "failed to set target current",
	EventErrorChangeTargetSpeed:   "failed to set target speed",
	EventErrorReadMotorStatus:     "failed to read motor status",
	EventErrorReadMotorCurrent:    "failed to read motor current",
	EventErrorReadMotorVoltage:    "failed to read motor voltage",
	EventErrorConfigReadEeprom:    "eeprom config read failed",
	EventErrorConfigWriteEeprom:   "eeprom config write failed",
	EventErrorConfigVersion:       "stored config version mismatch",
	EventErrorConfigChecksum:      "stored config checksum mismatch",
	EventErrorThrottleLowLimit:    "throttle below low limit",
	EventErrorThrottleHighLimit:   "throttle above high limit",
	EventErrorWatchdogTriggered:   "watchdog reset occurred",

	EventDataAssistLevel:     "assist level",
	EventDataOperationMode:   "operation mode",
	EventDataWheelSpeedPPM:   "wheel speed (ppm)",
	EventDataLVCLimiting:     "low voltage cutoff limiting",
	EventDataThermalLimiting: "thermal limiting",
	EventDataSpeedLimiting:   "speed limiting",
	EventDataMaxCurrentADC:   "max current (adc)",
	EventDataMainLoopTime:    "main loop time (ms)",
	EventDataThrottleADC:     "throttle position (adc)",
	EventDataLVCVoltage:      "lvc voltage (x100)",
	EventDataTemperature:     "temperature (c)",
}

// IsError reports whether the entry's code lies in the fault band.
func (e EventLogEntry) IsError() bool {
	return e.Code >= 0x10 && e.Code < 0x40
}

// String renders the entry using the known-code catalogue, falling back to
// the raw code byte for codes this build does not know.
func (e EventLogEntry) String() string {
	name, ok := eventNames[e.Code]
	if !ok {
		name = fmt.Sprintf("event 0x%02x", e.Code)
	}
	if e.HasData {
		return fmt.Sprintf("%s: %d", name, e.Data)
	}
	return name
}
