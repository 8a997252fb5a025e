package cmd

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/wind_analyzer_go/internal/testutil"
)

// executeCommand runs a fresh command tree and returns its combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment isolates viper and the config directory and sends
// logs to a temporary file.
func setupTestEnvironment(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("WINDANALYZER_POLLING_INTERVAL_MS", "100")
	t.Setenv("WINDANALYZER_LOGGING_DIR", t.TempDir())
	t.Setenv("WINDANALYZER_CACHE_BACKEND", "none")
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"rose", "aep", "report", "config"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
	for _, flag := range []string{"config", "backend-url", "log-level", "verbose"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestRoseFromCSV(t *testing.T) {
	setupTestEnvironment(t)
	csv := testutil.WriteCSV(t, testutil.SampleCSV)
	out := filepath.Join(t.TempDir(), "rose.svg")

	output, err := executeCommand(NewRootCmd(), "rose", "--csv", csv, "--bins", "8", "--out", out)
	if err != nil {
		t.Fatalf("rose error = %v\n%s", err, output)
	}
	if !strings.Contains(output, "Samples: 4 valid of 4") {
		t.Errorf("output missing sample count:\n%s", output)
	}
	if !strings.Contains(output, "(svg, 8 sectors)") {
		t.Errorf("output missing format line:\n%s", output)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("rose file not written: %v", err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("output is not an SVG document")
	}
}

func TestRoseFromBackendPNG(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)
	out := filepath.Join(t.TempDir(), "rose.png")

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "rose", "--compact", "--out", out)
	if err != nil {
		t.Fatalf("rose error = %v\n%s", err, output)
	}
	if fb.Hits("/api/data/wind-rose") != 1 {
		t.Errorf("wind-rose hits = %d, want 1", fb.Hits("/api/data/wind-rose"))
	}
	if !strings.Contains(output, "binned 8") {
		t.Errorf("output missing binned count:\n%s", output)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("rose file not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestRoseFlagErrors(t *testing.T) {
	setupTestEnvironment(t)
	csv := testutil.WriteCSV(t, testutil.SampleCSV)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing out", []string{"rose", "--csv", csv}, "out"},
		{"bad format", []string{"rose", "--csv", csv, "--out", filepath.Join(dir, "rose.gif")}, "unsupported image format"},
		{"bad start", []string{"rose", "--csv", csv, "--start", "yesterday", "--out", filepath.Join(dir, "r.png")}, "invalid --start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			_, err := executeCommand(NewRootCmd(), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestAEPWait(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "--wait", "--timeout", "10s")
	if err != nil {
		t.Fatalf("aep error = %v\n%s", err, output)
	}
	for _, want := range []string{"Submitted AEP analysis task-1", "State: polling", "State: completed", "aep_gwh: 12.3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestAEPNoWait(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "--product", "era5")
	if err != nil {
		t.Fatalf("aep error = %v\n%s", err, output)
	}
	if !strings.Contains(output, "windctl aep status task-1") {
		t.Errorf("output missing status hint:\n%s", output)
	}
	if fb.Hits("/api/analysis/aep/status/task-1") != 0 {
		t.Error("aep without --wait should not poll")
	}
}

func TestAEPWaitFailed(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)
	fb.Handle("/api/analysis/aep/status/task-1", testutil.Respond(http.StatusOK,
		`{"task_id":"task-1","status":"failed","error":"regression did not converge"}`))

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "--wait", "--timeout", "10s")
	if err == nil {
		t.Fatalf("expected failure, output:\n%s", output)
	}
	if !strings.Contains(err.Error(), "regression did not converge") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(output, "State: failed") {
		t.Errorf("output missing failed transition:\n%s", output)
	}
}

func TestAEPSubmitRejected(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)
	fb.Fail("/api/analysis/aep", http.StatusUnprocessableEntity, "unknown reanalysis product")

	_, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "--wait", "--product", "ncep2")
	if err == nil || !strings.Contains(err.Error(), "unknown reanalysis product") {
		t.Errorf("error = %v, want backend detail", err)
	}
}

func TestAEPStatus(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "status", "task-1")
	if err != nil {
		t.Fatalf("aep status error = %v\n%s", err, output)
	}
	if !strings.Contains(output, "Task task-1: completed") || !strings.Contains(output, "aep_gwh: 12.3") {
		t.Errorf("unexpected output:\n%s", output)
	}

	viper.Reset()
	if _, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "aep", "status", "missing"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestReport(t *testing.T) {
	setupTestEnvironment(t)
	fb := testutil.NewFakeBackend(t)
	fb.Fail("/api/analysis/yaw-misalignment", http.StatusInternalServerError, "boom")
	out := filepath.Join(t.TempDir(), "report.pdf")

	output, err := executeCommand(NewRootCmd(), "--backend-url", fb.URL(), "report", "--with-aep", "--out", out)
	if err != nil {
		t.Fatalf("report error = %v\n%s", err, output)
	}
	if !strings.Contains(output, "yaw misalignment") {
		t.Errorf("output missing section warning:\n%s", output)
	}
	if !strings.Contains(output, "Report written to "+out) {
		t.Errorf("output missing path:\n%s", output)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("report is not a PDF")
	}
}

func TestConfigShowAndPath(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("WINDANALYZER_BACKEND_BASE_URL", "http://analysis.example:9000")

	output, err := executeCommand(NewRootCmd(), "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(output, "no config file") {
		t.Errorf("output missing config file note:\n%s", output)
	}
	if !strings.Contains(output, "http://analysis.example:9000") {
		t.Errorf("env override not shown:\n%s", output)
	}

	viper.Reset()
	output, err = executeCommand(NewRootCmd(), "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(output, filepath.Join("wind_analyzer", "config.yaml")) {
		t.Errorf("config path = %q", output)
	}
}

func TestExplicitConfigFile(t *testing.T) {
	setupTestEnvironment(t)
	path := filepath.Join(t.TempDir(), "windctl.yaml")
	if err := os.WriteFile(path, []byte("windrose:\n  direction_bins: 12\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(NewRootCmd(), "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(output, "# config file: "+path) || !strings.Contains(output, "direction_bins: 12") {
		t.Errorf("unexpected output:\n%s", output)
	}

	viper.Reset()
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("backend:\n  timeout_seconds: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(NewRootCmd(), "--config", bad, "config", "show"); err == nil {
		t.Error("expected validation error for a zero backend timeout")
	}
}
