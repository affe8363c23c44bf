package flow

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/progress"
)

func writeTempImage(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.iso")
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLinuxFlowStreamsProgress(t *testing.T) {
	runner := command.NewFakeRunner()
	runner.StderrFor["dd"] = "500 bytes (500 B) copied, 1 s, 500 B/s\r" +
		"1000 bytes (1.0 kB) copied, 2 s, 500 B/s\r"
	rec := progress.NewRecorder()
	f := NewLinuxFlow(runner)

	req := Request{ImagePath: writeTempImage(t, 1000), DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int{0, 45, 90, 90, 100}
	if got := rec.Overalls(); !slices.Equal(got, want) {
		t.Fatalf("overalls = %v, want %v", got, want)
	}
	steps := rec.Steps()
	if len(steps) == 0 || steps[len(steps)-1] != 100 {
		t.Fatalf("steps = %v, want terminal 100", steps)
	}

	dd := runner.CallsTo("dd")
	if len(dd) != 1 {
		t.Fatalf("dd called %d times, want 1", len(dd))
	}
	joined := strings.Join(dd[0].Args, " ")
	for _, arg := range []string{"of=/dev/sdb", "bs=4M", "conv=fdatasync", "status=progress"} {
		if !strings.Contains(joined, arg) {
			t.Fatalf("dd args %q missing %q", joined, arg)
		}
	}
	if len(runner.CallsTo("sync")) != 1 {
		t.Fatal("sync was not invoked after the copy")
	}
}

func TestLinuxFlowZeroByteImage(t *testing.T) {
	runner := command.NewFakeRunner()
	rec := progress.NewRecorder()
	f := NewLinuxFlow(runner)

	req := Request{ImagePath: writeTempImage(t, 0), DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	overalls := rec.Overalls()
	if len(overalls) == 0 || overalls[len(overalls)-1] != 100 {
		t.Fatalf("overalls = %v, want terminal 100", overalls)
	}
}

func TestLinuxFlowHonorsClusterSize(t *testing.T) {
	runner := command.NewFakeRunner()
	f := NewLinuxFlow(runner)

	req := Request{
		ImagePath:   writeTempImage(t, 64),
		DevicePath:  "/dev/sdc",
		ClusterSize: "1M",
	}
	if err := f.Run(context.Background(), req, progress.NewRecorder()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Contains(runner.CallsTo("dd")[0].Args, "bs=1M") {
		t.Fatal("requested cluster size was not passed to dd")
	}
}

func TestLinuxFlowCopyFailure(t *testing.T) {
	runner := command.NewFakeRunner()
	runner.WaitErrFor["dd"] = &command.CommandError{Tool: "dd", Output: "No space left on device"}
	f := NewLinuxFlow(runner)

	req := Request{ImagePath: writeTempImage(t, 10), DevicePath: "/dev/sdb"}
	err := f.Run(context.Background(), req, progress.NewRecorder())
	if err == nil {
		t.Fatal("Run succeeded, want dd failure")
	}
	if !strings.HasPrefix(err.Error(), "dd") {
		t.Fatalf("error %q does not lead with the tool name", err)
	}

	// The sync is still attempted after a failed copy.
	if got := len(runner.CallsTo("sync")); got != 1 {
		t.Fatalf("sync calls = %d, want 1 after copy failure", got)
	}
}

func TestLinuxFlowMissingImage(t *testing.T) {
	f := NewLinuxFlow(command.NewFakeRunner())
	req := Request{ImagePath: "/nonexistent/image.iso", DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, progress.NewRecorder()); err == nil {
		t.Fatal("Run succeeded with a missing image")
	}
}

func TestPartitionPath(t *testing.T) {
	cases := []struct {
		device string
		n      int
		want   string
	}{
		{"/dev/sdb", 1, "/dev/sdb1"},
		{"/dev/sdb", 2, "/dev/sdb2"},
		{"/dev/nvme0n1", 1, "/dev/nvme0n1p1"},
		{"/dev/mmcblk0", 2, "/dev/mmcblk0p2"},
	}
	for _, c := range cases {
		if got := partitionPath(c.device, c.n); got != c.want {
			t.Errorf("partitionPath(%q, %d) = %q, want %q", c.device, c.n, got, c.want)
		}
	}
}
