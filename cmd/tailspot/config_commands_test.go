package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLIConfigInit(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration to")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestCLIConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "show"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "[paths]")
	requireContains(t, stdout, "[sources]")
	requireContains(t, stdout, env.cfg.Paths.DataDir)
}

func TestCLIConfigPath(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "path"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, stdout, env.configPath)

	missing := filepath.Join(env.baseDir, "missing.toml")
	stdout, _, err = runCLI(t, []string{"config", "path"}, "", missing)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, stdout, "does not exist yet")
}
