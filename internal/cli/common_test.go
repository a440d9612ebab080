package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/danieljhkim/sysextctl/internal/health"
)

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"simple map", map[string]string{"key": "value"}, "{\n  \"key\": \"value\"\n}"},
		{"empty map", map[string]string{}, "{}"},
		{"array", []string{"a", "b"}, "[\n  \"a\",\n  \"b\"\n]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatJSON(tt.input)
			if err != nil {
				t.Fatalf("formatJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("formatJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = os.Stdout }()

	if err := outputJSON(map[string]string{"test": "value"}); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}

	var v map[string]string
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Errorf("outputJSON() produced invalid JSON: %v", err)
	}
	if v["test"] != "value" {
		t.Errorf("decoded %v", v)
	}
}

func TestPrintFunctions(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = os.Stdout }()

	PrintSuccess("Success message")
	PrintWarning("Warning message")
	PrintInfo("Info message")
	PrintTable([]string{"A", "B"}, [][]string{{"1", "longer"}})

	out := buf.String()
	for _, want := range []string{"Success message", "Warning message", "Info message", "longer"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCount(t *testing.T) {
	if got := PrintCount(1, "image", "images"); got != "1 image" {
		t.Errorf("PrintCount(1) = %q", got)
	}
	if got := PrintCount(0, "image", "images"); got != "0 images" {
		t.Errorf("PrintCount(0) = %q", got)
	}
}

func TestSelectedChecks(t *testing.T) {
	in := &desiredInput{
		servicing: health.AbUpdate,
		checks: health.Checks{
			health.Script{Name: "smoke", Content: "true"},
			health.SystemdCheck{Name: "units", SystemdServices: []string{"a.service"}},
			health.Script{Name: "install-only", Content: "true", RunOn: []health.ServicingType{health.CleanInstall}},
		},
	}

	got := in.selectedChecks()
	if len(got) != 2 {
		t.Fatalf("selectedChecks() = %+v, want 2 checks", got)
	}
	if got[0] != (checkSummary{Name: "smoke", Kind: "script"}) || got[1] != (checkSummary{Name: "units", Kind: "systemd"}) {
		t.Errorf("selectedChecks() = %+v", got)
	}

	in.servicing = health.CleanInstall
	if got := in.selectedChecks(); len(got) != 0 {
		t.Errorf("selectedChecks(clean-install) = %+v, want none", got)
	}
}
