package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pithecene-io/rpbridge/types"
)

// timeLayout is ISO 8601 with millisecond precision, always UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

// levelName maps a remote level to the ReportPortal wire name.
func levelName(l types.LogLevel) string {
	if l == types.LogLevelWarning {
		return "warn"
	}
	if l == "" {
		return "info"
	}
	return strings.ToLower(string(l))
}

type attributeRQ struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

type startLaunchRQ struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   string        `json:"startTime"`
	Attributes  []attributeRQ `json:"attributes,omitempty"`
	Mode        string        `json:"mode,omitempty"`
}

type finishLaunchRQ struct {
	EndTime string `json:"endTime"`
}

type startItemRQ struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	StartTime  string `json:"startTime"`
	LaunchUUID string `json:"launchUuid"`
}

type finishItemRQ struct {
	EndTime    string `json:"endTime"`
	Status     string `json:"status,omitempty"`
	LaunchUUID string `json:"launchUuid"`
}

type fileRQ struct {
	Name string `json:"name"`
}

type saveLogRQ struct {
	LaunchUUID string  `json:"launchUuid"`
	ItemUUID   string  `json:"itemUuid,omitempty"`
	Time       string  `json:"time"`
	Level      string  `json:"level"`
	Message    string  `json:"message"`
	File       *fileRQ `json:"file,omitempty"`
}

type entryCreatedRS struct {
	ID string `json:"id"`
}

type errorRS struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// doMultipart sends a log entry with its attachment. ReportPortal expects a
// "json_request_part" holding a JSON array of entries and one "file" part
// per attachment, matched by file name.
func (c *Client) doMultipart(ctx context.Context, path string, entry saveLogRQ, att *types.Attachment) error {
	entry.File = &fileRQ{Name: att.Name}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	jsonHeader := make(textproto.MIMEHeader)
	jsonHeader.Set("Content-Disposition", `form-data; name="json_request_part"`)
	jsonHeader.Set("Content-Type", "application/json")
	jp, err := w.CreatePart(jsonHeader)
	if err != nil {
		return fmt.Errorf("create json part: %w", err)
	}
	if err := json.NewEncoder(jp).Encode([]saveLogRQ{entry}); err != nil {
		return fmt.Errorf("encode json part: %w", err)
	}

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
	fileHeader.Set("Content-Type", att.MimeType)
	fp, err := w.CreatePart(fileHeader)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := fp.Write(att.Data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, w.FormDataContentType(), &buf, nil)
}
