package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTable_Render(t *testing.T) {
	tbl := NewTable("USN", "LOCATION")
	tbl.AddRow("uuid:a", "http://192.168.1.1:80/desc.xml")
	tbl.AddRow("uuid:bbbbbb")

	lines := strings.Split(tbl.Render(), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "USN") || !strings.Contains(lines[0], "LOCATION") {
		t.Errorf("header line = %q", lines[0])
	}
	// second column starts at the same offset in every row
	col := strings.Index(lines[0], "LOCATION")
	if got := strings.Index(lines[1], "http://"); got != col {
		t.Errorf("column offset = %d, want %d", got, col)
	}
	if strings.HasSuffix(lines[2], " ") {
		t.Errorf("trailing spaces in %q", lines[2])
	}
}

func TestTable_Truncate(t *testing.T) {
	tbl := NewTable("A")
	tbl.MaxCellWidth = 5
	tbl.AddRow("abcdefgh")
	if got := tbl.Render(); !strings.Contains(got, "abcd…") {
		t.Errorf("Render() = %q, want truncated cell", got)
	}
}

func TestPrinter_PrintTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintTable(NewTable("A"), "no devices found")
	if !strings.Contains(buf.String(), "no devices found") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTipsFromHint(t *testing.T) {
	hint := "The device did not respond in time.\nTroubleshooting:\n  • Check power\n  • Retry once"
	got := TipsFromHint(hint)
	want := []string{"The device did not respond in time.", "Check power", "Retry once"}
	if len(got) != len(want) {
		t.Fatalf("TipsFromHint() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tip[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact phrase", "overwrite\n", true},
		{"phrase without newline", "overwrite", true},
		{"surrounding space", "  overwrite \n", true},
		{"wrong phrase", "yes\n", false},
		{"empty input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, "Replace config", []string{"existing file"}, "overwrite")
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Replace config") {
				t.Errorf("warning box missing title: %q", out.String())
			}
		})
	}
}

func TestRunner_Success(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Sweep",
		Command:   "upnpctl sweep",
		StepNames: []string{"ssdp:all", "upnp:rootdevice", "urn:schemas-upnp-org:device:MediaServer:1"},
		Output:    &out,
	})

	details, err := r.Run(context.Background(), func(onStep StepCallback) (map[string]string, error) {
		if got := r.Progress().Steps[0].Status; got != StepSearching {
			t.Errorf("first step status = %v, want searching", got)
		}
		onStep(1, 3, nil)
		if got := r.Progress().Steps[1].Status; got != StepSearching {
			t.Errorf("second step status = %v, want searching", got)
		}
		onStep(2, 0, errors.New("timeout"))
		onStep(3, 0, nil)
		onStep(3, 5, nil) // repeated reports are ignored
		return map[string]string{"Devices": "2"}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if details["Duration"] == "" {
		t.Error("Duration detail missing")
	}
	if details["Responses"] != "3" {
		t.Errorf("Responses detail = %q, want 3", details["Responses"])
	}
	if p := r.Progress().Percent(); p != 1 {
		t.Errorf("Percent() = %v, want 1", p)
	}

	s := out.String()
	for _, want := range []string{"SWEEP", "upnpctl sweep", "(3 responses)", "(timeout)", "(no answer)", "SUCCESS", "Sweep complete"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestProgress_Finish(t *testing.T) {
	p := NewProgress([]string{"upnp:rootdevice", "ssdp:all", "urn:x", "urn:y"}).SetWidth(80)

	p.Start(1)
	if p.Current != 1 {
		t.Errorf("Current = %d, want 1", p.Current)
	}
	if !p.Finish(1, 1, nil) {
		t.Fatal("Finish(1) = false, want true")
	}
	if p.Finish(1, 4, nil) {
		t.Error("second Finish(1) = true, want false")
	}
	p.Finish(2, 2, errors.New("read udp: i/o error"))
	p.Finish(3, 0, nil)
	if p.Finish(9, 1, nil) {
		t.Error("Finish(9) on a missing step = true, want false")
	}

	tests := []struct {
		step   int
		status StepStatus
		note   string
	}{
		{1, StepAnswered, "1 response"},
		{2, StepFailed, "2 responses, then read udp: i/o error"},
		{3, StepSilent, "no answer"},
		{4, StepPending, ""},
	}
	for _, tt := range tests {
		s := p.Steps[tt.step-1]
		if s.Status != tt.status {
			t.Errorf("step %d status = %v, want %v", tt.step, s.Status, tt.status)
		}
		if got := s.Note(); got != tt.note {
			t.Errorf("step %d Note() = %q, want %q", tt.step, got, tt.note)
		}
	}

	if p.Responses != 3 {
		t.Errorf("Responses = %d, want 3", p.Responses)
	}
	if p.Finished() != 3 || p.Percent() != 0.75 {
		t.Errorf("Finished() = %d, Percent() = %v, want 3 and 0.75", p.Finished(), p.Percent())
	}
	if out := p.Render(); !strings.Contains(out, "[3/4]") || !strings.Contains(out, "3 responses") {
		t.Errorf("Render() missing counters:\n%s", out)
	}
}

func TestProgress_LongTargetIsTruncated(t *testing.T) {
	target := "urn:schemas-upnp-org:device:InternetGatewayDevice:1:with-a-much-longer-suffix"
	p := NewProgress([]string{target})
	line := p.renderStepLine(p.Steps[0])
	if strings.Contains(line, target) || !strings.Contains(line, "…") {
		t.Errorf("target not truncated: %q", line)
	}
}

func TestRunner_Failure(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:  "Sweep",
		Output: &out,
		Troubleshooting: func(error) []string {
			return []string{"check the firewall"}
		},
	})

	_, err := r.Run(context.Background(), func(StepCallback) (map[string]string, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	s := out.String()
	for _, want := range []string{"FAILED", "boom", "check the firewall"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestHeader_SortsParams(t *testing.T) {
	h := NewHeader("Discover", "upnpctl discover", map[string]string{"Timeout": "5s", "MX": "3"})
	s := h.SetWidth(80).Render()
	if strings.Index(s, "MX:") > strings.Index(s, "Timeout:") {
		t.Errorf("params not sorted:\n%s", s)
	}
}
