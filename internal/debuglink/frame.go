package debuglink

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
)

// Frame types carried on the wire. Host-to-device below 0x10,
// device-to-host at 0x10 and up.
const (
	FrameScript    byte = 0x01 // complete remote script upload
	FrameInterrupt byte = 0x02 // interruption request
	FrameCmdBegin  byte = 0x03 // remote command started
	FrameCmdEnd    byte = 0x04 // remote command finished
	FrameExit      byte = 0x05 // terminate interactive session
	FrameLine      byte = 0x06 // one interactive command line
	FrameMode      byte = 0x07 // negotiate interactive mode (payload "raw"/"friendly")

	FrameResult byte = 0x10 // turn result
	FrameFault  byte = 0x11 // caught script fault report
)

// frameOverhead is type byte + 2-byte length + 2-byte checksum.
const frameOverhead = 5

// maxPayload bounds a single frame payload.
const maxPayload = 0xFFFF

// crcTable is CCITT-FALSE, the polynomial the wire protocol settled on.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// EncodeFrame serializes one frame: type, big-endian payload length,
// payload, big-endian CRC16 over everything before the checksum.
func EncodeFrame(typ byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayload {
		return nil, fmt.Errorf("frame payload %d exceeds %d", len(payload), maxPayload)
	}
	buf := make([]byte, 0, len(payload)+frameOverhead)
	buf = append(buf, typ)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint16(buf, crc16.Checksum(buf, crcTable))
	return buf, nil
}

// DecodeFrame parses and checksum-verifies one frame.
func DecodeFrame(raw []byte) (typ byte, payload []byte, err error) {
	if len(raw) < frameOverhead {
		return 0, nil, fmt.Errorf("short frame: %d bytes", len(raw))
	}
	n := int(binary.BigEndian.Uint16(raw[1:3]))
	if len(raw) != n+frameOverhead {
		return 0, nil, fmt.Errorf("frame length mismatch: header says %d, got %d", n, len(raw)-frameOverhead)
	}
	body := raw[:len(raw)-2]
	want := binary.BigEndian.Uint16(raw[len(raw)-2:])
	if got := crc16.Checksum(body, crcTable); got != want {
		return 0, nil, fmt.Errorf("frame checksum mismatch: got %#04x, want %#04x", got, want)
	}
	return raw[0], raw[3 : 3+n], nil
}

// dispatch routes one verified inbound frame into the channel state.
// Runs on transport receive goroutines; flag-set and enqueue only.
func (s *State) dispatch(typ byte, payload []byte) {
	switch typ {
	case FrameScript:
		s.OfferScript(string(payload))
	case FrameInterrupt:
		s.RequestInterrupt()
	case FrameCmdBegin:
		s.BeginCommand()
	case FrameCmdEnd:
		s.EndCommand()
	case FrameExit:
		s.PushExit()
	case FrameLine:
		s.PushLine(string(payload))
	case FrameMode:
		if string(payload) == "friendly" {
			s.SetMode(ModeFriendly)
		} else {
			s.SetMode(ModeRaw)
		}
	default:
		s.log.Warn("unknown frame type", "type", typ)
	}
}
