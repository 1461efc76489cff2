package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alembic-run/alembic/internal/manifest"
)

func TestInitCreatesManifest(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := doInit(dir, "tools", nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doInit = %d, want 0; stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, manifest.Filename))
	if err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		t.Fatalf("parsing written manifest: %v", err)
	}
	if m.Name != "tools" {
		t.Errorf("Name = %q, want tools", m.Name)
	}
	if m.Version != "0.1.0" {
		t.Errorf("Version = %q, want 0.1.0", m.Version)
	}
}

func TestInitRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.Filename), []byte("name = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer
	code := doInit(dir, "tools", nil, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("doInit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("stderr = %q, want 'already exists'", stderr.String())
	}
}

func TestInitPromptDefaultsToDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-rules")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Empty input accepts the suggested default.
	code := doInit(dir, "", strings.NewReader("\n"), &bytes.Buffer{}, &bytes.Buffer{})
	if code != 0 {
		t.Fatalf("doInit = %d, want 0", code)
	}
	data, err := os.ReadFile(filepath.Join(dir, manifest.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `name = "my-rules"`) {
		t.Errorf("manifest = %q, want name my-rules", data)
	}
}

func TestInitRejectsInvalidName(t *testing.T) {
	var stderr bytes.Buffer
	code := doInit(t.TempDir(), "Bad Name!", nil, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("doInit = %d, want 1", code)
	}
	if stderr.Len() == 0 {
		t.Error("expected an error on stderr")
	}
}
