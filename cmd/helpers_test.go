package cmd

import "testing"

func TestResolveConfigEditPathPrefersFlag(t *testing.T) {
	t.Parallel()

	got, err := resolveConfigEditPath("./custom.yaml", "/tmp/active.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "./custom.yaml" {
		t.Fatalf("expected flag path, got %q", got)
	}
}

func TestResolveConfigEditPathFallsBackToActiveConfig(t *testing.T) {
	t.Parallel()

	got, err := resolveConfigEditPath("", "/tmp/active.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/tmp/active.yaml" {
		t.Fatalf("expected active config path, got %q", got)
	}
}

func TestParseIDRejectsNonPositiveValues(t *testing.T) {
	t.Parallel()

	if _, err := parseID("42"); err != nil {
		t.Fatalf("expected 42 to parse: %v", err)
	}
	for _, raw := range []string{"0", "-3", "abc", ""} {
		if _, err := parseID(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestDetectExportFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"./out.csv":  "csv",
		"./out.xlsx": "excel",
		"./out.XLSM": "excel",
		"./out.txt":  "csv",
		"./out":      "csv",
	}
	for path, want := range cases {
		if got := detectExportFormat(path); got != want {
			t.Fatalf("detectExportFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatDurationMinutes(t *testing.T) {
	t.Parallel()

	if got := formatDurationMinutes(90); got != "01:30:00" {
		t.Fatalf("expected 01:30:00, got %q", got)
	}
	if got := formatDurationMinutes(-5); got != "-5 min" {
		t.Fatalf("expected fallback for negative minutes, got %q", got)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	if got := truncateText("short", 30); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateText("a very long description that keeps going", 10); got != "a very ..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
