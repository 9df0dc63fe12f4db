// Package types defines core domain types shared by the bridge, the host
// sources, and the reporting transports.
//
//nolint:revive // types is a common Go package naming convention
package types

import "maps"

// ContractVersion is the host frame contract version.
const ContractVersion = Version

// Default attachment labels used when the host does not name its data.
const (
	DefaultAttachmentName     = "Attachment"
	DefaultAttachmentMimeType = "image/jpeg"
)

// Attachment is a binary blob attached to a log entry.
type Attachment struct {
	// Name is the file name shown by the reporting service.
	Name string `msgpack:"name" json:"name"`
	// MimeType is the MIME content type of Data.
	MimeType string `msgpack:"mime_type" json:"mime_type"`
	// Data is the raw attachment bytes.
	Data []byte `msgpack:"data" json:"-"`
}

// WithDefaults returns a copy with empty Name and MimeType filled in.
func (a *Attachment) WithDefaults() *Attachment {
	if a == nil {
		return nil
	}
	out := *a
	if out.Name == "" {
		out.Name = DefaultAttachmentName
	}
	if out.MimeType == "" {
		out.MimeType = DefaultAttachmentMimeType
	}
	return &out
}

// LogEvent is a single log call made by the host framework.
// Constructed per call and never persisted.
type LogEvent struct {
	// Level is the host-defined level name ("info", "Failure", "warn", ...).
	Level string
	// Category is the host-defined category label.
	Category string
	// Message is the log text.
	Message string
	// Attachment is optional binary data.
	Attachment *Attachment
	// Metadata is optional key/value context. Order carries no meaning.
	Metadata map[string]string
}

// Clone returns a deep copy of the event's metadata and attachment
// descriptors. Attachment bytes are shared.
func (e *LogEvent) Clone() *LogEvent {
	out := *e
	if e.Metadata != nil {
		out.Metadata = maps.Clone(e.Metadata)
	}
	if e.Attachment != nil {
		a := *e.Attachment
		out.Attachment = &a
	}
	return &out
}
