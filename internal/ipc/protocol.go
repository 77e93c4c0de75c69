// Package ipc carries status queries between a controller and the tunnel
// process over a Unix socket.
//
// Every message is a frame: a 4-byte big-endian length followed by that many
// bytes. A request payload is the bare command name. A response payload is
// one kind byte followed by the response body; KindNone means the tunnel
// process had nothing to say, which is how unknown commands are answered.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/net2share/meshtun/internal/tunnel"
)

// Commands understood by the tunnel process.
const (
	CmdAddress  = "address"
	CmdSubnet   = "subnet"
	CmdPeers    = "peers"
	CmdSummary  = "summary"
	CmdStatus   = "status"
	CmdPing     = "ping"
	CmdShutdown = "shutdown"
)

// Response kinds.
const (
	KindNone byte = 0
	KindData byte = 1
)

// MaxFrameSize bounds a single frame.
const MaxFrameSize = 1 << 20

var (
	ErrNoResponse    = errors.New("no response")
	ErrTimeout       = errors.New("request timed out")
	ErrFrameTooLarge = errors.New("frame too large")
)

// PingResult is the response payload for the ping command.
type PingResult struct {
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

// StatusResult is the response payload for the status command.
type StatusResult struct {
	State string               `json:"state"`
	Stats tunnel.StatsSnapshot `json:"stats"`
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func encodeResponse(data []byte, ok bool) []byte {
	if !ok {
		return []byte{KindNone}
	}
	out := make([]byte, 1+len(data))
	out[0] = KindData
	copy(out[1:], data)
	return out
}

func decodeResponse(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty response frame")
	}
	switch payload[0] {
	case KindNone:
		return nil, ErrNoResponse
	case KindData:
		return payload[1:], nil
	default:
		return nil, fmt.Errorf("unknown response kind %d", payload[0])
	}
}
