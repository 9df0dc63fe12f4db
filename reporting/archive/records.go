package archive

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// Record kinds. Each is its own record_kind partition.
const (
	RecordKindLaunchStarted  = "launch_started"
	RecordKindLaunchFinished = "launch_finished"
	RecordKindItemStarted    = "item_started"
	RecordKindItemFinished   = "item_finished"
	RecordKindLog            = "log"
)

// partitionKeys is the Hive layout of the dataset, outermost first.
var partitionKeys = []string{"day", "launch_id", "record_kind"}

const dayLayout = "2006-01-02"

func dayOf(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(dayLayout)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// baseRecord carries the partition keys every record needs.
func baseRecord(kind, day, launchID string) map[string]any {
	return map[string]any{
		"contract_version": types.ContractVersion,
		"record_kind":      kind,
		"day":              day,
		"launch_id":        launchID,
	}
}

func launchStartedRecord(day, launchID string, req *reporting.StartLaunchRequest) map[string]any {
	r := baseRecord(RecordKindLaunchStarted, day, launchID)
	r["name"] = req.Name
	r["description"] = req.Description
	r["start_time"] = stamp(req.StartTime)
	r["mode"] = string(req.Mode)
	attrs := make([]map[string]any, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs = append(attrs, map[string]any{"key": a.Key, "value": a.Value})
	}
	r["attributes"] = attrs
	return r
}

func launchFinishedRecord(day, launchID string, req *reporting.FinishLaunchRequest) map[string]any {
	r := baseRecord(RecordKindLaunchFinished, day, launchID)
	r["end_time"] = stamp(req.EndTime)
	return r
}

func itemStartedRecord(day, launchID, itemID, parentID string, req *reporting.StartItemRequest) map[string]any {
	r := baseRecord(RecordKindItemStarted, day, launchID)
	r["item_id"] = itemID
	r["parent_id"] = parentID
	r["name"] = req.Name
	r["type"] = string(req.Type)
	r["start_time"] = stamp(req.StartTime)
	return r
}

func itemFinishedRecord(day, launchID, itemID string, req *reporting.FinishItemRequest) map[string]any {
	r := baseRecord(RecordKindItemFinished, day, launchID)
	r["item_id"] = itemID
	r["end_time"] = stamp(req.EndTime)
	r["status"] = string(req.Status)
	return r
}

func logRecord(day, launchID, itemID, logID, filePath string, req *reporting.LogRequest) map[string]any {
	r := baseRecord(RecordKindLog, day, launchID)
	r["log_id"] = logID
	r["item_id"] = itemID
	r["time"] = stamp(req.Time)
	r["level"] = string(req.Level)
	r["message"] = req.Message
	if a := req.Attachment; a != nil {
		r["attachment_name"] = a.Name
		r["attachment_mime_type"] = a.MimeType
		r["attachment_size"] = len(a.Data)
		r["attachment_path"] = filePath
	}
	return r
}

// filePath computes where an attachment lands in the store.
// Format: datasets/<dataset>/partitions/day=<d>/launch_id=<l>/files/<logID>-<name>
func filePath(dataset, day, launchID, logID, name string) string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/launch_id=%s/files/%s-%s",
		dataset, day, launchID, logID, safeName(name))
}

// safeName reduces an attachment name to a single path segment.
func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return types.DefaultAttachmentName
	}
	return base
}
