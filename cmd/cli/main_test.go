package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logmerge/internal/merge"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestUsageExitsCleanly(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no flags", []string{}, "Missing -f parameter!"},
		{"missing ext", []string{"-f", "out.log"}, "Missing -e parameter!"},
		{"ext without dot", []string{"-f", "out.log", "-e", "log"}, "Extension need to start with a dot!"},
		{"flag without value", []string{"-f"}, "flag needs an argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("Execute error = %v, want nil (usage exits 0)", err)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
			if !strings.Contains(stdout+stderr, "Usage:") {
				t.Fatalf("output does not contain usage:\n%s%s", stdout, stderr)
			}
		})
	}
}

func TestVersionShowsBuildTime(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(stdout, merge.Version) || !strings.Contains(stdout, "built "+merge.BuildTime) {
		t.Fatalf("version output = %q", stdout)
	}
}

func TestMergeCommand(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{"a.log": "AAA", "b.log": "AAA", "c.log": "BBB", "d.txt": "CCC"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	out := filepath.Join(t.TempDir(), "merged.log")

	stdout, _, err := execute(t, "-f", out, "-e", ".log", "-w", "3", "--log-level", "error", root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 6 {
		t.Fatalf("merged %d bytes (%q), want 6", len(data), data)
	}
	if !strings.Contains(stdout, "Merged 2 unique files") {
		t.Fatalf("summary missing:\n%s", stdout)
	}
}

func TestStartupFailureIsAnError(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "missing-dir", "merged.log")

	if _, _, err := execute(t, "-f", out, "-e", ".log", "--log-level", "error", root); err == nil {
		t.Fatal("opening the output in a missing directory should fail")
	}
}

func TestConfigFileSeedsFlags(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "x.txt"), []byte("text"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "y.log"), []byte("log"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out := filepath.Join(t.TempDir(), "merged.out")
	cfgPath := filepath.Join(t.TempDir(), "logmerge.yaml")
	cfg := "root: " + root + "\nfile: " + out + "\next: .log\nworkers: 2\nbuffer: 1KB\nlog_level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The explicit flag overrides the config extension.
	if _, _, err := execute(t, "--config", cfgPath, "-e", ".txt"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "text" {
		t.Fatalf("output = %q, want %q", data, "text")
	}
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("workerz: 3\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadConfig(cfgPath); err == nil {
		t.Fatal("unknown key should be rejected")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"512", 512},
		{"10B", 10},
		{"1KB", 1024},
		{"1.5MB", 1536 * 1024},
		{"2gb", 2 * 1024 * 1024 * 1024},
		{"32.00 MB", 32 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseSize(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"lots", "-1KB"} {
		if _, err := ParseSize(bad); err == nil {
			t.Errorf("ParseSize(%q) should fail", bad)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		12:                     "12 B",
		2048:                   "2.00 KB",
		3 * 1024 * 1024:        "3.00 MB",
		5 * 1024 * 1024 * 1024: "5.00 GB",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
