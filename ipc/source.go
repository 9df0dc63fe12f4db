package ipc

import (
	"context"
	"io"

	"github.com/pithecene-io/rpbridge/types"
)

// Source turns a frame stream into host events.
type Source struct {
	decoder *FrameDecoder
}

// NewSource creates a Source reading frames from r.
func NewSource(r io.Reader) *Source {
	return &Source{decoder: NewFrameDecoder(r)}
}

// Next returns the next host event, or io.EOF when the stream is exhausted.
// Non-fatal decode errors are returned as *FrameError; the caller may skip
// the frame and call Next again.
func (s *Source) Next(ctx context.Context) (*types.HostEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := s.decoder.ReadFrame()
	if err != nil {
		return nil, err
	}

	frame, err := DecodeFrame(payload)
	if err != nil {
		return nil, err
	}

	switch f := frame.(type) {
	case *RunStartFrame:
		return &types.HostEvent{Kind: types.HostRunStart, Launch: f.Launch.info()}, nil
	case *LogFrame:
		return &types.HostEvent{
			Kind:  types.HostLog,
			Suite: f.Suite,
			Test:  f.Test,
			Log: &types.LogEvent{
				Level:      f.Level,
				Category:   f.Category,
				Message:    f.Message,
				Attachment: f.Attachment,
				Metadata:   f.Metadata,
			},
		}, nil
	default:
		return &types.HostEvent{Kind: types.HostRunEnd}, nil
	}
}

func (l *LaunchFrame) info() *types.LaunchInfo {
	if l == nil {
		return nil
	}
	info := &types.LaunchInfo{
		Name:        l.Name,
		Description: l.Description,
		Mode:        types.LaunchMode(l.Mode),
	}
	for _, a := range l.Attributes {
		info.Attributes = append(info.Attributes, types.Attribute{Key: a.Key, Value: a.Value})
	}
	return info
}
