package recording

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"testing"
	"time"

	"meetingbot/internal/config"
)

func stubEncoder(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string{name}, args...))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "RECORDER_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func testConfig() config.Recording {
	return config.Recording{
		FFmpegBinary: "ffmpeg",
		Display:      ":99",
		AudioSource:  "default",
		FrameRate:    30,
	}
}

func TestStartStopCleanExit(t *testing.T) {
	stubEncoder(t, "wait", nil)
	recorder := New(testConfig(), filepath.Join(t.TempDir(), "recording.mp4"), nil)

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !recorder.Active() {
		t.Fatal("recorder should be active after Start")
	}
	// Let the helper install its interrupt handler before stopping.
	time.Sleep(100 * time.Millisecond)

	result := recorder.Stop(context.Background())
	if !result.Stopped {
		t.Fatal("Stop should report a live recording was stopped")
	}
	if !result.OK {
		t.Fatalf("encoder should exit cleanly, detail: %s", result.Detail)
	}
	if recorder.Active() {
		t.Fatal("recorder should be idle after Stop")
	}
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	var captured [][]string
	stubEncoder(t, "wait", &captured)
	recorder := New(testConfig(), filepath.Join(t.TempDir(), "recording.mp4"), nil)

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("spawned %d encoder processes, want 1", len(captured))
	}
	recorder.Stop(context.Background())
}

func TestStopWithoutStart(t *testing.T) {
	recorder := New(testConfig(), filepath.Join(t.TempDir(), "recording.mp4"), nil)
	result := recorder.Stop(context.Background())
	if result.Stopped {
		t.Fatal("Stop should report nothing was live")
	}
}

func TestStopReportsAbnormalExit(t *testing.T) {
	stubEncoder(t, "fail", nil)
	recorder := New(testConfig(), filepath.Join(t.TempDir(), "recording.mp4"), nil)

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	// Let the helper exit with its failure status before stopping.
	time.Sleep(100 * time.Millisecond)

	result := recorder.Stop(context.Background())
	if !result.Stopped {
		t.Fatal("Stop should report a recording was live")
	}
	if result.OK {
		t.Fatal("a non-zero encoder exit must not read as OK")
	}
	if result.Detail == "" {
		t.Fatal("abnormal exit should carry a detail string")
	}
}

func TestRestartAfterStop(t *testing.T) {
	var captured [][]string
	stubEncoder(t, "wait", &captured)
	recorder := New(testConfig(), filepath.Join(t.TempDir(), "recording.mp4"), nil)

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	recorder.Stop(context.Background())
	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("restart returned error: %v", err)
	}
	recorder.Stop(context.Background())

	if len(captured) != 2 {
		t.Fatalf("spawned %d encoder processes, want 2", len(captured))
	}
}

func TestBuildArgsTargetsConfiguredCapture(t *testing.T) {
	recorder := New(testConfig(), "/tmp/out/recording.mp4", nil)
	args := recorder.buildArgs()

	joined := ""
	for _, arg := range args {
		joined += arg + " "
	}
	for _, want := range []string{":99", "default", "30", "/tmp/out/recording.mp4", "x11grab"} {
		found := false
		for _, arg := range args {
			if arg == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
}

// TestHelperProcess stands in for the encoder binary. It is not a real
// test; the stubbed commandContext re-executes the test binary to run it.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("RECORDER_HELPER_MODE") {
	case "wait":
		// Hold like ffmpeg until interrupted, then exit cleanly.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		select {
		case <-sig:
			os.Exit(0)
		case <-time.After(10 * time.Second):
			os.Exit(0)
		}
	case "fail":
		os.Exit(3)
	}
	os.Exit(0)
}
