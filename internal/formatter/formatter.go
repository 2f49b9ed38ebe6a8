// package formatter renders imported songs and their catalog mapping state as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

// Format names accepted by [Export].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Export dispatches to the exporter registered for format.
func Export(format, title string, songs []*models.Song) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(songs)
	case FormatMarkdown, "md":
		return ExportToMarkdown(title, songs)
	case FormatText, "txt", "":
		return ExportToText(title, songs)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV writes one row per song with columns: ExternalID, Source, Title, Artist, Duration, InternalID, ResolvedAt
func ExportToCSV(songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ExternalID", "Source", "Title", "Artist", "Duration", "InternalID", "ResolvedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range songs {
		resolvedAt := ""
		if s.ResolvedAt != nil {
			resolvedAt = s.ResolvedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			s.ExternalID,
			s.Source,
			s.Title,
			s.Artist,
			strconv.Itoa(s.DurationSec),
			s.InternalID,
			resolvedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, a resolved/unresolved summary and a numbered track list.
func ExportToMarkdown(title string, songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer
	resolved := countResolved(songs)

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(songs))
	fmt.Fprintf(&buf, "**Resolved**: %d\n", resolved)
	fmt.Fprintf(&buf, "**Unresolved**: %d\n\n", len(songs)-resolved)

	buf.WriteString("## Tracks\n\n")
	for i, s := range songs {
		mapping := "_unresolved_"
		if s.InternalID != "" {
			mapping = "`" + s.InternalID + "`"
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s] → %s\n", i+1, s.Artist, s.Title, FormatDuration(s.DurationSec), mapping)
	}
	return buf.Bytes(), nil
}

// ExportToText renders a plain listing, marking unresolved songs with "?".
func ExportToText(title string, songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer
	resolved := countResolved(songs)

	fmt.Fprintf(&buf, "%s\n", title)
	fmt.Fprintf(&buf, "Tracks: %d (resolved %d, unresolved %d)\n\n", len(songs), resolved, len(songs)-resolved)

	for i, s := range songs {
		mapping := "?"
		if s.InternalID != "" {
			mapping = s.InternalID
		}
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, s.Artist, s.Title, mapping)
	}
	return buf.Bytes(), nil
}

// WriteExport renders songs in format and writes them to path.
func WriteExport(path, format, title string, songs []*models.Song) error {
	data, err := Export(format, title, songs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func countResolved(songs []*models.Song) int {
	n := 0
	for _, s := range songs {
		if s.InternalID != "" {
			n++
		}
	}
	return n
}
