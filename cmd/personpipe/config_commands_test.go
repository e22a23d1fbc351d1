package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("[database]\npath = %q\n\n[logging]\ndir = %q\n",
		filepath.Join(dir, "persons.db"),
		filepath.Join(dir, "logs"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output %q does not mention %s", out, target)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("sample config was not written: %v", err)
	}

	// A second init must refuse to clobber the file.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Error("config init overwrote an existing file without error")
	}
}

func TestConfigValidate(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCommand(t, "config", "validate", "--config", path)
	if err != nil {
		t.Fatalf("config validate returned error: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("output %q is missing the validation result", out)
	}
}

func TestConfigShow(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCommand(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show returned error: %v", err)
	}
	for _, want := range []string{"# loaded from", "[api]", "base_url", "[ingest]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPath(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCommand(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path returned error: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path printed %q, want %q", strings.TrimSpace(out), path)
	}
}
