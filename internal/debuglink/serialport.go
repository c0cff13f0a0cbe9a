package debuglink

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// SerialTransport carries the same frame protocol over a host serial port,
// for boards wired to a USB-serial debug header instead of the network.
type SerialTransport struct {
	state *State
	log   *slog.Logger

	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the port and starts the receive loop.
func OpenSerial(state *State, device string, baud int, log *slog.Logger) (*SerialTransport, error) {
	if log == nil {
		log = slog.Default()
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial debug port %s: %w", device, err)
	}
	t := &SerialTransport{state: state, log: log, port: port}
	state.SetSender(t.sendFrame)
	go t.readLoop()
	return t, nil
}

// Close shuts the port down; the receive loop exits on the read error.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}

// readLoop reassembles frames from the byte stream: header, payload,
// checksum, then dispatch. Flag-set and enqueue only.
func (t *SerialTransport) readLoop() {
	header := make([]byte, 3)
	for {
		if _, err := io.ReadFull(t.port, header); err != nil {
			return
		}
		n := int(binary.BigEndian.Uint16(header[1:3]))
		rest := make([]byte, n+2)
		if _, err := io.ReadFull(t.port, rest); err != nil {
			return
		}
		raw := append(append(make([]byte, 0, len(header)+len(rest)), header...), rest...)
		typ, payload, err := DecodeFrame(raw)
		if err != nil {
			t.log.Warn("dropping bad serial frame", "error", err)
			continue
		}
		t.state.dispatch(typ, payload)
	}
}

func (t *SerialTransport) sendFrame(kind byte, text string) {
	raw, err := EncodeFrame(kind, []byte(text))
	if err != nil {
		t.log.Warn("dropping oversized output frame", "error", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.port.Write(raw); err != nil {
		t.log.Warn("serial write failed", "error", err)
	}
}
