package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInstallProjectsDependency(t *testing.T) {
	workspace, reg := newWorkspace(t, map[string]string{"lint": "^1.0.0"})
	writeBundle(t, reg, "lint", "1.0.0", nil, map[string]string{"rules/style.md": "# Style\n"})
	writeBundle(t, reg, "lint", "1.2.0", nil, map[string]string{"rules/style.md": "# Style\n\nPrefer short functions.\n"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "", false, false, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "installed lint@1.2.0") {
		t.Errorf("stdout = %q, want 'installed lint@1.2.0'", stdout.String())
	}

	data, err := os.ReadFile(filepath.Join(workspace, ".claude", "rules", "style.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Prefer short functions.") {
		t.Errorf("projected file = %q, want 1.2.0 content", data)
	}
}

func TestInstallAddsDependencyToManifest(t *testing.T) {
	workspace, reg := newWorkspace(t, nil)
	writeBundle(t, reg, "lint", "1.2.0", nil, map[string]string{"rules/style.md": "# Style\n"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "lint@^1.0.0", false, false, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}

	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Name != "lint" || m.Dependencies[0].Range != "^1.0.0" {
		t.Errorf("Dependencies = %+v, want lint ^1.0.0", m.Dependencies)
	}
}

func TestInstallBareNameDefaultsToCaretLatest(t *testing.T) {
	workspace, reg := newWorkspace(t, nil)
	writeBundle(t, reg, "lint", "1.2.0", nil, map[string]string{"rules/style.md": "# Style\n"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "lint", false, false, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Range != "^1.2.0" {
		t.Errorf("Dependencies = %+v, want range ^1.2.0", m.Dependencies)
	}
}

func TestInstallForceResolvesConflictByPinning(t *testing.T) {
	workspace, reg := newWorkspace(t, map[string]string{"a": "^1.0.0", "b": "^1.0.0"})
	writeBundle(t, reg, "a", "1.0.0", map[string]string{"shared": "^1.0.0"}, nil)
	writeBundle(t, reg, "b", "1.0.0", map[string]string{"shared": "^2.0.0"}, nil)
	writeBundle(t, reg, "shared", "1.0.0", nil, map[string]string{"rules/s.md": "v1\n"})
	writeBundle(t, reg, "shared", "2.0.0", nil, map[string]string{"rules/s.md": "v2\n"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "", true, false, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "installed shared@2.0.0") {
		t.Errorf("stdout = %q, want 'installed shared@2.0.0'", stdout.String())
	}

	// The pin survives in the manifest for future resolutions.
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if m.Overrides["shared"] != "2.0.0" {
		t.Errorf("Overrides = %v, want shared pinned to 2.0.0", m.Overrides)
	}
}

func TestInstallConflictPromptPicksVersion(t *testing.T) {
	workspace, reg := newWorkspace(t, map[string]string{"a": "^1.0.0", "b": "^1.0.0"})
	writeBundle(t, reg, "a", "1.0.0", map[string]string{"shared": "^1.0.0"}, nil)
	writeBundle(t, reg, "b", "1.0.0", map[string]string{"shared": "^2.0.0"}, nil)
	writeBundle(t, reg, "shared", "1.0.0", nil, nil)
	writeBundle(t, reg, "shared", "2.0.0", nil, nil)

	// Pick option 1: shared@1.0.0.
	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "", false, false, strings.NewReader("1\n"), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "installed shared@1.0.0") {
		t.Errorf("stdout = %q, want 'installed shared@1.0.0'", stdout.String())
	}
}

func TestInstallMissingDependencyReported(t *testing.T) {
	workspace, _ := newWorkspace(t, map[string]string{"ghost": "^1.0.0"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "", false, false, nil, &stdout, &stderr)
	if code != 1 {
		t.Errorf("doInstall = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), `"ghost" not found in registry`) {
		t.Errorf("stderr = %q, want missing-formula remediation", stderr.String())
	}
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		in        string
		name, rng string
	}{
		{"lint", "lint", ""},
		{"lint@^1.0.0", "lint", "^1.0.0"},
		{"@scope/lint", "@scope/lint", ""},
		{"@scope/lint@2.0.0", "@scope/lint", "2.0.0"},
	}
	for _, tt := range tests {
		name, rng := splitTarget(tt.in)
		if name != tt.name || rng != tt.rng {
			t.Errorf("splitTarget(%q) = %q, %q; want %q, %q", tt.in, name, rng, tt.name, tt.rng)
		}
	}
}

func TestInstallNoPlatformsStillResolves(t *testing.T) {
	workspace := t.TempDir()
	reg := t.TempDir()
	t.Setenv("ALEMBIC_REGISTRY", reg)
	writeManifestFile(t, workspace, "workspace", "0.1.0", map[string]string{"lint": "^1.0.0"})
	writeBundle(t, reg, "lint", "1.0.0", nil, map[string]string{"rules/style.md": "x\n"})

	var stdout, stderr bytes.Buffer
	code := doInstall(workspace, "", false, false, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInstall = %d, want 0; stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "No platform directories detected") {
		t.Errorf("stdout = %q, want platform notice", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(workspace, ".claude")); !os.IsNotExist(err) {
		t.Errorf("no platform dir should have been created, got err %v", err)
	}
}
