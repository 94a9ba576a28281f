// package formatter renders playlists and sync reports to JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
)

// Format is an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat validates a format name. "md" and "text" are accepted as aliases; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: ID, Title, Artist, Album, Duration, ISRC
func ExportToCSV(export *services.PlaylistExport) ([]byte, error) {
	rows := make([][]string, 0, len(export.Tracks))
	for _, track := range export.Tracks {
		rows = append(rows, []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.ISRC,
		})
	}
	return writeCSV([]string{"ID", "Title", "Artist", "Album", "Duration", "ISRC"}, rows)
}

// ExportToMarkdown converts a PlaylistExport to Markdown format
func ExportToMarkdown(export *services.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(export.Playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Title, albumPart, shared.FormatDuration(track.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *services.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, track)
	}

	return buf.Bytes(), nil
}

// RenderExport renders a playlist export in the given format.
func RenderExport(export *services.PlaylistExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	default:
		return shared.MarshalJSON(export, true)
	}
}

// WriteExport renders export and writes it to path, defaulting to {playlist.ID}.{ext}. Returns the path written.
func WriteExport(export *services.PlaylistExport, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", export.Playlist.ID, format.Ext())
	}

	data, err := RenderExport(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", format, err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist services.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *services.PlaylistExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Playlist.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := writeFile(tracksFile, csvData); err != nil {
		return nil, err
	}

	metadataJSON, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := writeFile(metadataFile, metadataJSON); err != nil {
		return nil, err
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport writes {dir}/README.md. The directory defaults to the playlist ID.
func WriteMarkdownExport(export *services.PlaylistExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.Playlist.ID
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := writeFile(mdFile, mdData); err != nil {
		return "", err
	}
	return mdFile, nil
}

// PlaylistReport summarizes one playlist sync.
type PlaylistReport struct {
	RunID           string           `json:"run_id"`
	Playlist        string           `json:"playlist"`
	SourceID        string           `json:"source_id"`
	DestinationID   string           `json:"destination_id"`
	Matched         int              `json:"matched"`
	Missing         int              `json:"missing"`
	Total           int              `json:"total"`
	MatchPercentage float64          `json:"match_percentage"`
	Duration        time.Duration    `json:"duration"`
	Error           string           `json:"error,omitempty"`
	Matches         []services.Match `json:"matches"`
}

// ReportToCSV writes one row per source track with columns: Playlist, Position, Title, Artist, Status, Destination ID
func ReportToCSV(reports []PlaylistReport) ([]byte, error) {
	var rows [][]string
	for _, r := range reports {
		for i, m := range r.Matches {
			rows = append(rows, []string{
				r.Playlist,
				strconv.Itoa(i + 1),
				m.Source.Title,
				m.Source.Artist,
				matchStatus(m),
				m.TrackID,
			})
		}
	}
	return writeCSV([]string{"Playlist", "Position", "Title", "Artist", "Status", "Destination ID"}, rows)
}

// ReportToMarkdown renders a summary table followed by the missing tracks of each playlist.
func ReportToMarkdown(reports []PlaylistReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync Report\n\n")
	buf.WriteString("| Playlist | Matched | Missing | Match % | Status |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, r := range reports {
		status := "✓"
		if r.Error != "" {
			status = "✗ " + r.Error
		}
		fmt.Fprintf(&buf, "| %s | %d | %d | %.1f | %s |\n", r.Playlist, r.Matched, r.Missing, r.MatchPercentage, status)
	}

	for _, r := range reports {
		if r.Missing == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n## Missing from %s\n\n", r.Playlist)
		for _, m := range r.Matches {
			if !m.Found() {
				fmt.Fprintf(&buf, "- %s\n", m.Source)
			}
		}
	}

	return buf.Bytes(), nil
}

// ReportToText renders a plain text summary with missing tracks.
func ReportToText(reports []PlaylistReport) ([]byte, error) {
	var buf bytes.Buffer

	for i, r := range reports {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "Playlist: %s\n", r.Playlist)
		if r.DestinationID != "" {
			fmt.Fprintf(&buf, "Destination: %s\n", r.DestinationID)
		}
		fmt.Fprintf(&buf, "Matched: %d/%d (%.1f%%)\n", r.Matched, r.Matched+r.Missing, r.MatchPercentage)
		if r.Error != "" {
			fmt.Fprintf(&buf, "Error: %s\n", r.Error)
		}
		for _, m := range r.Matches {
			if !m.Found() {
				fmt.Fprintf(&buf, "  missing: %s\n", m.Source)
			}
		}
	}

	return buf.Bytes(), nil
}

// RenderReport renders sync reports in the given format.
func RenderReport(reports []PlaylistReport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ReportToCSV(reports)
	case FormatMarkdown:
		return ReportToMarkdown(reports)
	case FormatText:
		return ReportToText(reports)
	default:
		return shared.MarshalJSON(reports, true)
	}
}

// WriteReport renders reports and writes them to path.
func WriteReport(reports []PlaylistReport, format Format, path string) error {
	if path == "" {
		return fmt.Errorf("%w: report path is required", shared.ErrMissingArgument)
	}

	data, err := RenderReport(reports, format)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return writeFile(path, data)
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFile(path, data)
}

func matchStatus(m services.Match) string {
	if m.Found() {
		return "matched"
	}
	return "missing"
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
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

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
