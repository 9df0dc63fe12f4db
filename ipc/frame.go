// Package ipc implements the host frame stream: a 4-byte big-endian length
// prefix followed by a msgpack payload.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/rpbridge/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	FrameTypeRunStart = "run_start"
	FrameTypeLog      = "log"
	FrameTypeRunEnd   = "run_end"
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error or unknown type.
	FrameErrorDecode
	// FrameErrorVersion indicates a run_start with a foreign contract version.
	FrameErrorVersion
)

// String returns the kind name.
func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorVersion:
		return "version"
	default:
		return "unknown"
	}
}

// FrameError represents a frame error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the stream cannot continue.
// Partial, oversized and version-mismatched frames are fatal; a frame that
// was read intact but could not be decoded is not.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// AttributeFrame is a launch attribute on the wire.
type AttributeFrame struct {
	Key   string `msgpack:"key"`
	Value string `msgpack:"value"`
}

// LaunchFrame carries optional launch attributes announced by the host.
type LaunchFrame struct {
	Name        string           `msgpack:"name,omitempty"`
	Description string           `msgpack:"description,omitempty"`
	Attributes  []AttributeFrame `msgpack:"attributes,omitempty"`
	Mode        string           `msgpack:"mode,omitempty"`
}

// RunStartFrame opens the run.
type RunStartFrame struct {
	Type            string       `msgpack:"type"`
	ContractVersion string       `msgpack:"contract_version"`
	Launch          *LaunchFrame `msgpack:"launch,omitempty"`
}

// LogFrame is one host log call with the host's current suite and test.
type LogFrame struct {
	Type       string            `msgpack:"type"`
	Suite      string            `msgpack:"suite"`
	Test       string            `msgpack:"test,omitempty"`
	Level      string            `msgpack:"level"`
	Category   string            `msgpack:"category"`
	Message    string            `msgpack:"message"`
	Escape     bool              `msgpack:"escape,omitempty"`
	Metadata   map[string]string `msgpack:"metadata,omitempty"`
	Attachment *types.Attachment `msgpack:"attachment,omitempty"`
}

// RunEndFrame closes the run.
type RunEndFrame struct {
	Type string `msgpack:"type"`
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into *RunStartFrame, *LogFrame or
// *RunEndFrame, discriminating on the type field.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case FrameTypeRunStart:
		return DecodeRunStart(payload)
	case FrameTypeLog:
		return decodeAs[LogFrame](payload, "log")
	case FrameTypeRunEnd:
		return decodeAs[RunEndFrame](payload, "run end")
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeRunStart decodes a run_start payload and checks its contract version.
func DecodeRunStart(payload []byte) (*RunStartFrame, error) {
	frame, err := decodeAs[RunStartFrame](payload, "run start")
	if err != nil {
		return nil, err
	}
	if frame.ContractVersion != types.ContractVersion {
		return nil, &FrameError{
			Kind: FrameErrorVersion,
			Msg: fmt.Sprintf("contract version mismatch: expected %s, got %q",
				types.ContractVersion, frame.ContractVersion),
		}
	}
	return frame, nil
}

func decodeAs[T any](payload []byte, what string) (*T, error) {
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode " + what + " frame",
			Err:  err,
		}
	}
	return &v, nil
}

// EncodeFrame marshals v and prepends the length prefix.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	var buf bytes.Buffer
	buf.Grow(LengthPrefixSize + len(payload))
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	buf.Write(prefix[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
// Used by host shims and test fixtures.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame encodes and writes one frame.
func (e *FrameEncoder) WriteFrame(v any) error {
	frame, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	if _, err := e.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// RunStart writes a run_start frame for the current contract version.
func (e *FrameEncoder) RunStart(launch *LaunchFrame) error {
	return e.WriteFrame(&RunStartFrame{
		Type:            FrameTypeRunStart,
		ContractVersion: types.ContractVersion,
		Launch:          launch,
	})
}

// Log writes a log frame. The Type field is set by the encoder.
func (e *FrameEncoder) Log(frame LogFrame) error {
	frame.Type = FrameTypeLog
	return e.WriteFrame(&frame)
}

// RunEnd writes a run_end frame.
func (e *FrameEncoder) RunEnd() error {
	return e.WriteFrame(&RunEndFrame{Type: FrameTypeRunEnd})
}
