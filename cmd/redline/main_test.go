package main

import (
	"testing"

	"github.com/FocuswithJustin/redline/internal/logging"
)

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.docx", "report.revised.docx"},
		{"Report.DOCX", "Report.revised.docx"},
		{"/tmp/a/b.docx", "/tmp/a/b.revised.docx"},
		{"notes", "notes.revised.docx"},
	}
	for _, tt := range tests {
		if got := defaultOutputPath(tt.input); got != tt.want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("DEBUG") != logging.LevelDebug {
		t.Error("debug level not recognized case-insensitively")
	}
	if parseLogLevel("bogus") != parseLogLevel("info") {
		t.Error("unknown levels should fall back to info")
	}
}
