package run

import (
	"strings"
	"testing"

	"github.com/majusb/majusb/pkg/classify"
	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/progress"
)

// TestFlowSelection tests that each detected kind maps to its own flow and
// an unknown kind has no mapping.
func TestFlowSelection(t *testing.T) {
	flows := map[classify.OSKind]string{
		classify.Linux:   "linux-raw-copy",
		classify.Windows: "windows-partition-copy",
	}

	if flows[classify.Linux] == flows[classify.Windows] {
		t.Fatal("both kinds resolve to the same flow")
	}
	if _, ok := flows[classify.OSKind("freebsd")]; ok {
		t.Fatal("unknown kind unexpectedly has a flow")
	}
}

// TestFailureMessageSelection tests the message the done event carries for
// the two failure shapes a flow can produce.
func TestFailureMessageSelection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "failed tool leads with its name",
			err:  &command.CommandError{Tool: "mkfs.ntfs", Output: "device busy"},
			want: "mkfs.ntfs failed: device busy",
		},
		{
			name: "missing tool is reported distinctly",
			err:  &command.ToolNotFoundError{Tool: "parted"},
			want: "required tool not found: parted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}

	// The two shapes stay distinguishable through errors.As.
	if _, ok := command.IsToolNotFound(&command.CommandError{Tool: "dd"}); ok {
		t.Fatal("CommandError misidentified as tool-not-found")
	}
	if tool, ok := command.IsToolNotFound(&command.ToolNotFoundError{Tool: "dd"}); !ok || tool != "dd" {
		t.Fatal("ToolNotFoundError not identified")
	}
}

// TestSinkRegistryIsolatesRuns tests that two concurrent runs each see
// only their own sink and that a detached key falls back to a discard
// sink instead of another run's channel.
func TestSinkRegistryIsolatesRuns(t *testing.T) {
	m := NewMachine(nil, nil, nil, NewValidator())

	first := progress.NewRecorder()
	second := progress.NewRecorder()
	m.attachSink("write-sdb-1", first)
	m.attachSink("write-sdc-2", second)

	m.sinkFor("write-sdb-1").Log("copying")
	m.sinkFor("write-sdc-2").Overall(30)

	if got := first.Events(); len(got) != 1 || got[0].Message != "copying" {
		t.Fatalf("first sink events = %+v, want only its own log", got)
	}
	if got := second.Overalls(); len(got) != 1 || got[0] != 30 {
		t.Fatalf("second sink overalls = %v, want only its own progress", got)
	}
	if len(first.Overalls()) != 0 {
		t.Fatal("second run's progress leaked into the first run's sink")
	}

	m.detachSink("write-sdb-1")
	// Emitting after detach must not panic and must not reach any run.
	m.sinkFor("write-sdb-1").Log("late event")
	if got := len(first.Events()) + len(second.Events()); got != 2 {
		t.Fatalf("late event reached a detached or foreign sink (%d events)", got)
	}
}

// TestResponseAccumulation tests WriteResponse field accumulation across
// transitions.
func TestResponseAccumulation(t *testing.T) {
	resp := &WriteResponse{RunID: 7}

	// Classify fills in the kind.
	resp.OSKind = string(classify.Windows)

	// A write failure records the message without clearing earlier fields.
	resp.ErrorMessage = "rsync failed: write error"

	if resp.RunID != 7 || resp.OSKind != "windows" {
		t.Errorf("earlier fields lost: %+v", resp)
	}
	if !strings.HasPrefix(resp.ErrorMessage, "rsync") {
		t.Errorf("failure message %q does not lead with the tool name", resp.ErrorMessage)
	}
}
