package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	th "github.com/desertthunder/tidx/internal/testing"
)

func testExport() *services.PlaylistExport {
	return &services.PlaylistExport{
		Playlist: services.Playlist{
			ID:          "test123",
			Name:        "Test Playlist",
			Description: "A test playlist",
			TrackCount:  2,
			Public:      true,
		},
		Tracks: []services.Track{
			{
				ID:       "track1",
				Title:    "Song One",
				Artist:   "Artist One",
				Album:    "Album One",
				Duration: 180,
				ISRC:     "USRC12345678",
			},
			{
				ID:       "track2",
				Title:    "Song Two",
				Artist:   "Artist Two",
				Duration: 245,
				ISRC:     "USRC87654321",
			},
		},
	}
}

func testReports() []PlaylistReport {
	return []PlaylistReport{
		{
			RunID:           "run-1",
			Playlist:        "Favorites",
			SourceID:        "sp1",
			DestinationID:   "td1",
			Matched:         1,
			Missing:         1,
			Total:           2,
			MatchPercentage: 50,
			Matches: []services.Match{
				{Source: services.Track{Title: "Song A", Artist: "Artist1"}, TrackID: "T1"},
				{Source: services.Track{Title: "Song B", Artist: "Artist2"}},
			},
		},
		{
			RunID:    "run-2",
			Playlist: "Broken",
			Error:    "API request failed",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ext  string
	}{
		{in: "", want: FormatJSON, ext: "json"},
		{in: "JSON", want: FormatJSON, ext: "json"},
		{in: "csv", want: FormatCSV, ext: "csv"},
		{in: "md", want: FormatMarkdown, ext: "md"},
		{in: "markdown", want: FormatMarkdown, ext: "md"},
		{in: "text", want: FormatText, ext: "txt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if got.Ext() != tt.ext {
				t.Errorf("expected ext %s, got %s", tt.ext, got.Ext())
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"ID,Title,Artist,Album,Duration,ISRC",
			"track1,Song One,Artist One,Album One,180,USRC12345678",
			"track2,Song Two,Artist Two,,245,USRC87654321",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("CSV missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Test Playlist",
			"**Description**: A test playlist",
			"**Tracks**: 2",
			"**Visibility**: Public",
			"## Tracks",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two - Song Two [4:05]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Playlist: Test Playlist", "Tracks: 2", "1. Artist One - Song One", "2. Artist Two - Song Two"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("RenderExport JSON", func(t *testing.T) {
		data, err := RenderExport(testExport(), FormatJSON)
		if err != nil {
			t.Fatalf("RenderExport failed: %v", err)
		}

		var decoded services.PlaylistExport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded.Tracks) != 2 || decoded.Playlist.Name != "Test Playlist" {
			t.Errorf("unexpected export %+v", decoded)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport default path", func(t *testing.T) {
		dir := t.TempDir()
		path, err := WriteExport(testExport(), FormatText, filepath.Join(dir, "nested", "out.txt"))
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "Playlist: Test Playlist") {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("WriteCSVExport", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "test123")
		res, err := WriteCSVExport(testExport(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}

		th.AssertFileExists(t, res.TracksFile)
		th.AssertFileExists(t, res.MetadataFile)

		var playlist services.Playlist
		if err := json.Unmarshal([]byte(th.MustReadFile(t, res.MetadataFile)), &playlist); err != nil {
			t.Fatalf("invalid metadata JSON: %v", err)
		}
		if playlist.ID != "test123" {
			t.Errorf("expected metadata for test123, got %s", playlist.ID)
		}
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "test123")
		path, err := WriteMarkdownExport(testExport(), dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if path != filepath.Join(dir, "README.md") {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteReport requires path", func(t *testing.T) {
		if err := WriteReport(testReports(), FormatJSON, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		if err := WriteManifest(map[string]int{"playlists": 3}, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, `"playlists": 3`) {
			t.Errorf("unexpected manifest: %s", content)
		}
	})
}

func TestReports(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := ReportToCSV(testReports())
		if err != nil {
			t.Fatalf("ReportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[1] != "Favorites,1,Song A,Artist1,matched,T1" {
			t.Errorf("unexpected row %q", lines[1])
		}
		if lines[2] != "Favorites,2,Song B,Artist2,missing," {
			t.Errorf("unexpected row %q", lines[2])
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := ReportToMarkdown(testReports())
		if err != nil {
			t.Fatalf("ReportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"| Favorites | 1 | 1 | 50.0 | ✓ |",
			"| Broken | 0 | 0 | 0.0 | ✗ API request failed |",
			"## Missing from Favorites",
			"- Artist2 - Song B",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
		if strings.Contains(output, "Missing from Broken") {
			t.Error("playlists without missing tracks should have no section")
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := ReportToText(testReports())
		if err != nil {
			t.Fatalf("ReportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Matched: 1/2 (50.0%)", "missing: Artist2 - Song B", "Error: API request failed"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		if err := WriteReport(testReports(), FormatJSON, path); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}

		var decoded []PlaylistReport
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].Matches[0].TrackID != "T1" {
			t.Errorf("unexpected report %+v", decoded)
		}
	})
}
