package chat

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExportFormat selects the transcript flavor written by an export.
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "md"
	FormatText     ExportFormat = "txt"
)

// ExportMIMEType is the content type of every export, whatever the format.
const ExportMIMEType = "text/plain"

const exportBaseName = "chat_history"

// ErrUnknownFormat is returned for export formats other than md and txt.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseExportFormat accepts "md" or "txt" (case-insensitive, surrounding spaces ignored).
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatText:
		return FormatText, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

// FileName is the download name for an export in the given format.
func (f ExportFormat) FileName() string {
	return exportBaseName + "." + string(f)
}

// FormatTranscript joins the messages into a single export blob.
//
// Each message becomes one entry prefixed with its role label; entries are
// separated by a blank line. Markdown bolds the labels and turns embedded
// newlines into hard breaks, plain text indents continuation lines.
func FormatTranscript(msgs []Message, format ExportFormat) (string, error) {
	var user, assistant, newline string
	switch format {
	case FormatMarkdown:
		user, assistant, newline = "**You:**", "**AI:**", "  \n"
	case FormatText:
		user, assistant, newline = "You:", "AI:", "\n   "
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", string(format))
	}

	entries := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label := assistant
		if m.IsUser {
			label = user
		}
		entries = append(entries, label+" "+strings.ReplaceAll(m.Text, "\n", newline))
	}
	return strings.Join(entries, "\n\n"), nil
}

// WriteExport formats the transcript and writes it to dir/chat_history.<format>,
// replacing any previous export. It returns the written path.
func WriteExport(dir string, msgs []Message, format ExportFormat) (string, error) {
	content, err := FormatTranscript(msgs, format)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create export directory")
	}
	path := filepath.Join(dir, format.FileName())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "write export")
	}
	return path, nil
}
