package embedding

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	md := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n- item one\n- item two\n"

	got := PlainText(md)

	if strings.Contains(got, "**") || strings.Contains(got, "#") || strings.Contains(got, "](") {
		t.Errorf("expected markdown syntax stripped, got %q", got)
	}
	for _, want := range []string{"Title", "bold", "link", "item one", "item two"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in plain text, got %q", want, got)
		}
	}
}

func TestPlainTextEmpty(t *testing.T) {
	if got := PlainText("   \n "); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestPlainTextCodeBlock(t *testing.T) {
	md := "Before\n\n```\nfmt.Println(\"hi\")\n```\n\nAfter"

	got := PlainText(md)
	if !strings.Contains(got, "fmt.Println") {
		t.Errorf("expected code block content preserved, got %q", got)
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fallback string
		want     string
	}{
		{"h1", "# My Document\n\nBody text.", "fb", "My Document"},
		{"h2 when no h1", "## Section One\n\nBody.", "fb", "Section One"},
		{"h1 wins over h2", "## Early Section\n\n# Real Title", "fb", "Real Title"},
		{"first line when no headings", "Just some prose here.\nMore prose.", "fb", "Just some prose here."},
		{"fallback when empty", "", "Untitled", "Untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.content, tt.fallback); got != tt.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
