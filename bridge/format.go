package bridge

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pithecene-io/rpbridge/levels"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// Format selects how a host log event is rendered into log entries.
type Format string

const (
	// FormatMetadata writes "<category> - <message>" with the attachment,
	// then a Debug entry listing metadata when any is present.
	FormatMetadata Format = "metadata"
	// FormatInline writes "<category> - <message> (<Level>)" and drops
	// metadata.
	FormatInline Format = "inline"
)

// ParseFormat validates a format name. Empty selects FormatMetadata.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatMetadata:
		return FormatMetadata, nil
	case FormatInline:
		return FormatInline, nil
	default:
		return "", fmt.Errorf("unknown message format %q (want %q or %q)", s, FormatMetadata, FormatInline)
	}
}

// MetadataHeader opens the secondary metadata entry.
const MetadataHeader = "Meta Info:"

// FormatMetadataText renders metadata as the header followed by one
// "\t<key> => <value>" line per pair, keys sorted.
func FormatMetadataText(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString(MetadataHeader)
	for _, k := range keys {
		sb.WriteString("\n\t")
		sb.WriteString(k)
		sb.WriteString(" => ")
		sb.WriteString(metadata[k])
	}
	return sb.String()
}

// emit sends the log entries for ev to r.
func (b *Bridge) emit(ctx context.Context, r reporting.Reporter, ev *types.LogEvent) error {
	text := ev.Category + " - " + ev.Message
	if b.format == FormatInline {
		text += " (" + levels.Capitalize(ev.Level) + ")"
	}

	primary := &reporting.LogRequest{
		Time:       b.now(),
		Level:      levels.Translate(ev.Level),
		Message:    text,
		Attachment: ev.Attachment.WithDefaults(),
	}
	if err := r.Log(ctx, primary); err != nil {
		return err
	}
	b.counts.Logs++
	b.collector.IncLogEntry()
	if primary.Attachment != nil {
		b.collector.IncAttachment()
	}

	if b.format == FormatInline || len(ev.Metadata) == 0 {
		return nil
	}

	meta := &reporting.LogRequest{
		Time:    b.now(),
		Level:   types.LogLevelDebug,
		Message: FormatMetadataText(ev.Metadata),
	}
	if err := r.Log(ctx, meta); err != nil {
		return err
	}
	b.counts.Logs++
	b.collector.IncLogEntry()
	b.collector.AddMetadataEntries(len(ev.Metadata))
	return nil
}
