package bbsfw

import (
	"reflect"
	"testing"
)

// Layout parameters of the test codec, see connection_test.go.
const (
	testCfgVersion byte = 5
	testCfgSize         = 4
)

var completeFrames = []struct {
	name string
	buf  []byte
	want frame
}{
	{
		name: "firmware version",
		buf:  []byte{0x01, 0x01, 0x01, 0x02, 0x03, 0x04, 0x0c},
		want: frame{kind: frameVersion, version: VersionInfo{Version: "1.2.3", ConfigVersion: 4}},
	},
	{
		name: "event log enable read ack",
		buf:  []byte{0x01, 0xf0, 0x00, 0xf1},
		want: frame{kind: frameEventLogAck},
	},
	{
		name: "configuration read",
		buf:  []byte{0x01, 0xf1, 0x05, 0x04, 0xaa, 0xbb, 0xcc, 0xdd, 0x09},
		want: frame{kind: frameConfigData, payload: []byte{0xaa, 0xbb, 0xcc, 0xdd}},
	},
	{
		name: "event log enable write ack",
		buf:  []byte{0x02, 0xf0, 0x01, 0xf3},
		want: frame{kind: frameEventLogAck},
	},
	{
		name: "configuration write accepted",
		buf:  []byte{0x02, 0xf1, 0x01, 0xf4},
		want: frame{kind: frameConfigResult, ok: true},
	},
	{
		name: "configuration write refused",
		buf:  []byte{0x02, 0xf1, 0x00, 0xf3},
		want: frame{kind: frameConfigResult, ok: false},
	},
	{
		name: "configuration write nonzero status",
		buf:  []byte{0x02, 0xf1, 0x07, 0xfa},
		want: frame{kind: frameConfigResult, ok: true},
	},
	{
		name: "event with data",
		buf:  []byte{0xed, 0x05, 0x00, 0x2a, 0x1c},
		want: frame{kind: frameEvent, event: EventLogEntry{Code: 5, Data: 42, HasData: true}},
	},
}

func TestParseFrameComplete(t *testing.T) {
	for _, tt := range completeFrames {
		t.Run(tt.name, func(t *testing.T) {
			action, f := parseFrame(tt.buf, testCfgVersion, testCfgSize)
			if action != parseComplete {
				t.Fatalf("action = %v, want complete", action)
			}
			if !reflect.DeepEqual(f, tt.want) {
				t.Fatalf("frame = %+v, want %+v", f, tt.want)
			}
		})
	}
}

// Feeding a frame byte by byte must produce the same outcome as feeding it
// whole: keep on every proper prefix, one completion on the final byte.
func TestParseFrameChunkingInvariance(t *testing.T) {
	for _, tt := range completeFrames {
		t.Run(tt.name, func(t *testing.T) {
			var rx []byte
			completes := 0
			for i, b := range tt.buf {
				rx = append(rx, b)
				action, f := parseFrame(rx, testCfgVersion, testCfgSize)
				switch action {
				case parseKeep:
					if i == len(tt.buf)-1 {
						t.Fatalf("frame still incomplete after final byte")
					}
				case parseDiscard:
					t.Fatalf("discard after %d bytes", i+1)
				case parseComplete:
					if i != len(tt.buf)-1 {
						t.Fatalf("complete after %d of %d bytes", i+1, len(tt.buf))
					}
					if !reflect.DeepEqual(f, tt.want) {
						t.Fatalf("frame = %+v, want %+v", f, tt.want)
					}
					completes++
					rx = rx[:0]
				}
			}
			if completes != 1 {
				t.Fatalf("got %d completions, want 1", completes)
			}
		})
	}
}

// Corrupting any single byte of a valid frame must yield a discard, never a
// keep or a wrong dispatch.
func TestParseFrameSingleByteCorruption(t *testing.T) {
	for _, tt := range completeFrames {
		for i := range tt.buf {
			bad := append([]byte(nil), tt.buf...)
			bad[i]++
			action, _ := parseFrame(bad, testCfgVersion, testCfgSize)
			if action != parseDiscard {
				t.Fatalf("%s: byte %d corrupted: action = %v, want discard", tt.name, i, action)
			}
		}
	}
}

func TestParseFrameTrailingBytesStillComplete(t *testing.T) {
	buf := []byte{0xed, 0x05, 0x00, 0x2a, 0x1c, 0x99}
	action, f := parseFrame(buf, testCfgVersion, testCfgSize)
	if action != parseComplete {
		t.Fatalf("action = %v, want complete", action)
	}
	want := EventLogEntry{Code: 5, Data: 42, HasData: true}
	if f.event != want {
		t.Fatalf("event = %+v, want %+v", f.event, want)
	}
}

// The code-only event frame drops a lone type byte instead of keeping it, so
// a frame split right after 0xee never completes. Behavior carried over
// as-is from the original tool.
func TestEventCodeFrameShortBufferDiscard(t *testing.T) {
	if action, _ := parseFrame([]byte{0xee}, testCfgVersion, testCfgSize); action != parseDiscard {
		t.Fatalf("lone type byte: action = %v, want discard", action)
	}
	if action, _ := parseFrame([]byte{0xee, 0x07}, testCfgVersion, testCfgSize); action != parseKeep {
		t.Fatalf("type and code: action = %v, want keep", action)
	}
	action, f := parseFrame([]byte{0xee, 0x07, 0xf5}, testCfgVersion, testCfgSize)
	if action != parseComplete {
		t.Fatalf("full frame: action = %v, want complete", action)
	}
	want := EventLogEntry{Code: 7}
	if f.event != want {
		t.Fatalf("event = %+v, want %+v", f.event, want)
	}
	if action, _ := parseFrame([]byte{0xee, 0x07, 0x00}, testCfgVersion, testCfgSize); action != parseDiscard {
		t.Fatalf("bad checksum: action = %v, want discard", action)
	}
}

// A read-config frame announcing the wrong layout version or size is dropped
// as soon as its header is readable, without waiting for the payload.
func TestParseFrameConfigHeaderPrecheck(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want parseAction
	}{
		{"header incomplete", []byte{0x01, 0xf1, 0x05}, parseKeep},
		{"wrong version", []byte{0x01, 0xf1, 0x06, 0x04}, parseDiscard},
		{"wrong size", []byte{0x01, 0xf1, 0x05, 0x05}, parseDiscard},
		{"wrong version with full payload", []byte{0x01, 0xf1, 0x06, 0x04, 0xaa, 0xbb, 0xcc, 0xdd, 0x0a}, parseDiscard},
		{"header ok", []byte{0x01, 0xf1, 0x05, 0x04}, parseKeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if action, _ := parseFrame(tt.buf, testCfgVersion, testCfgSize); action != tt.want {
				t.Fatalf("action = %v, want %v", action, tt.want)
			}
		})
	}
}

func TestParseFrameUnknownTypeOrOpcode(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"unknown type", []byte{0x55, 0x01, 0x02}},
		{"zero type", []byte{0x00}},
		{"unknown read opcode", []byte{0x01, 0x99}},
		{"unknown write opcode", []byte{0x02, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if action, _ := parseFrame(tt.buf, testCfgVersion, testCfgSize); action != parseDiscard {
				t.Fatalf("action = %v, want discard", action)
			}
		})
	}
}

func TestRequestEncodings(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"version probe", readRequest(opFirmwareVersion), []byte{0x01, 0x01, 0x02}},
		{"config read", readRequest(opConfig), []byte{0x01, 0xf1, 0xf2}},
		{"event log on", writeEventLogRequest(true), []byte{0x02, 0xf0, 0x01, 0xf3}},
		{"event log off", writeEventLogRequest(false), []byte{0x02, 0xf0, 0x00, 0xf2}},
		{"config write", writeConfigRequest(0x05, []byte{0xaa, 0xbb}), []byte{0x02, 0xf1, 0x05, 0x02, 0xaa, 0xbb, 0x5f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Fatalf("frame = %# x, want %# x", tt.got, tt.want)
			}
		})
	}
}
