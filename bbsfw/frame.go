package bbsfw

import "fmt"

// Frame type bytes. Responses reuse the type byte of the request they answer;
// 0xed/0xee frames are pushed by the controller on its own initiative.
const (
	typeRead          byte = 0x01
	typeWrite         byte = 0x02
	typeEventWithData byte = 0xed
	typeEventCode     byte = 0xee
)

// Opcodes under the read/write types.
const (
	opFirmwareVersion byte = 0x01
	opEventLogEnable  byte = 0xf0
	opConfig          byte = 0xf1
)

// readRequest builds `[0x01][opcode][checksum]`.
func readRequest(op byte) []byte {
	b := []byte{typeRead, op}
	return append(b, Checksum(b))
}

// writeEventLogRequest builds `[0x02][0xf0][0|1][checksum]`.
func writeEventLogRequest(enable bool) []byte {
	flag := byte(0)
	if enable {
		flag = 1
	}
	b := []byte{typeWrite, opEventLogEnable, flag}
	return append(b, Checksum(b))
}

// writeConfigRequest builds `[0x02][0xf1][version][length][payload...][checksum]`.
func writeConfigRequest(version byte, payload []byte) []byte {
	b := make([]byte, 0, len(payload)+5)
	b = append(b, typeWrite, opConfig, version, byte(len(payload)))
	b = append(b, payload...)
	return append(b, Checksum(b))
}

// parseAction is the parser's verdict on the accumulated receive buffer.
type parseAction int

const (
	parseKeep     parseAction = iota // incomplete frame, wait for more bytes
	parseDiscard                     // unusable buffer, drop it
	parseComplete                    // full valid frame consumed, drop buffer
)

type frameKind int

const (
	frameNone frameKind = iota
	frameVersion
	frameEventLogAck
	frameConfigData
	frameConfigResult
	frameEvent
)

// frame is the decoded form of one complete response or event. Which field is
// meaningful depends on kind.
type frame struct {
	kind    frameKind
	version VersionInfo
	payload []byte
	ok      bool
	event   EventLogEntry
}

// parseFrame inspects buf, which always starts at a would-be frame boundary,
// and decides whether it holds the prefix of a frame (keep), garbage or a
// frame failing its checksum (discard), or one complete valid frame
// (complete, with the decoded frame). cfgVersion and cfgSize are the locally
// expected configuration layout version and serialized length; a read-config
// frame announcing anything else is discarded as soon as its header is
// readable rather than buffered to completion.
func parseFrame(buf []byte, cfgVersion byte, cfgSize int) (parseAction, frame) {
	if len(buf) == 0 {
		return parseKeep, frame{}
	}

	switch buf[0] {
	case typeRead:
		return parseReadResponse(buf, cfgVersion, cfgSize)

	case typeWrite:
		return parseWriteResponse(buf)

	case typeEventCode:
		// `[0xee][code][checksum]`. The lone-type-byte buffer is discarded
		// instead of kept, so a code frame split right after its type byte is
		// lost. Kept as-is from the original tool; see DESIGN.md.
		if len(buf) < 2 {
			return parseDiscard, frame{}
		}
		if len(buf) < 3 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:2]) != buf[2] {
			return parseDiscard, frame{}
		}
		return parseComplete, frame{kind: frameEvent, event: EventLogEntry{Code: buf[1]}}

	case typeEventWithData:
		// `[0xed][code][data-hi][data-lo][checksum]`
		if len(buf) < 5 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:4]) != buf[4] {
			return parseDiscard, frame{}
		}
		ev := EventLogEntry{
			Code:    buf[1],
			Data:    uint16(buf[2])<<8 | uint16(buf[3]),
			HasData: true,
		}
		return parseComplete, frame{kind: frameEvent, event: ev}
	}

	return parseDiscard, frame{}
}

func parseReadResponse(buf []byte, cfgVersion byte, cfgSize int) (parseAction, frame) {
	if len(buf) < 2 {
		return parseKeep, frame{}
	}

	switch buf[1] {
	case opFirmwareVersion:
		// `[0x01][0x01][major][minor][patch][config-version][checksum]`
		if len(buf) < 7 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:6]) != buf[6] {
			return parseDiscard, frame{}
		}
		v := VersionInfo{
			Version:       fmt.Sprintf("%d.%d.%d", buf[2], buf[3], buf[4]),
			ConfigVersion: buf[5],
		}
		return parseComplete, frame{kind: frameVersion, version: v}

	case opEventLogEnable:
		// `[0x01][0xf0][flag][checksum]`, answer carries no information
		if len(buf) < 4 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:3]) != buf[3] {
			return parseDiscard, frame{}
		}
		return parseComplete, frame{kind: frameEventLogAck}

	case opConfig:
		// `[0x01][0xf1][version][size][payload...][checksum]`
		if len(buf) < 4 {
			return parseKeep, frame{}
		}
		if buf[2] != cfgVersion || int(buf[3]) != cfgSize {
			return parseDiscard, frame{}
		}
		total := 4 + cfgSize + 1
		if len(buf) < total {
			return parseKeep, frame{}
		}
		if Checksum(buf[:total-1]) != buf[total-1] {
			return parseDiscard, frame{}
		}
		return parseComplete, frame{kind: frameConfigData, payload: buf[4 : 4+cfgSize]}
	}

	return parseDiscard, frame{}
}

func parseWriteResponse(buf []byte) (parseAction, frame) {
	if len(buf) < 2 {
		return parseKeep, frame{}
	}

	switch buf[1] {
	case opEventLogEnable:
		// `[0x02][0xf0][flag][checksum]`, answer carries no information
		if len(buf) < 4 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:3]) != buf[3] {
			return parseDiscard, frame{}
		}
		return parseComplete, frame{kind: frameEventLogAck}

	case opConfig:
		// `[0x02][0xf1][status][checksum]`, nonzero status means accepted
		if len(buf) < 4 {
			return parseKeep, frame{}
		}
		if Checksum(buf[:3]) != buf[3] {
			return parseDiscard, frame{}
		}
		return parseComplete, frame{kind: frameConfigResult, ok: buf[2] != 0}
	}

	return parseDiscard, frame{}
}
