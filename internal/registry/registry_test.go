package registry

import (
	"errors"
	"testing"

	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/manifest"
)

func newTestRegistry() (*Registry, *fsys.Fake) {
	fake := fsys.NewFake()
	fake.Dirs["/reg"] = true
	return New(fake, "/reg"), fake
}

func storedManifest(name, ver string) []byte {
	return []byte("name = \"" + name + "\"\nversion = \"" + ver + "\"\n")
}

func seedVersion(fake *fsys.Fake, name, ver string) {
	dir := "/reg/" + name + "/" + ver
	fake.Dirs["/reg/"+name] = true
	fake.Dirs[dir] = true
	fake.Files[dir+"/formula.toml"] = storedManifest(name, ver)
}

func TestListVersionsSorted(t *testing.T) {
	r, fake := newTestRegistry()
	seedVersion(fake, "lint", "1.10.0")
	seedVersion(fake, "lint", "1.2.0")
	seedVersion(fake, "lint", "0.9.0")

	vs, err := r.ListVersions("lint")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	want := []string{"0.9.0", "1.2.0", "1.10.0"}
	if len(vs) != len(want) {
		t.Fatalf("ListVersions = %v, want %v", vs, want)
	}
	for i := range want {
		if vs[i] != want[i] {
			t.Errorf("ListVersions[%d] = %q, want %q", i, vs[i], want[i])
		}
	}
}

func TestListVersionsMissingFormula(t *testing.T) {
	r, _ := newTestRegistry()
	vs, err := r.ListVersions("ghost")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("ListVersions = %v, want empty", vs)
	}
	if r.Exists("ghost") {
		t.Error("Exists(ghost) = true")
	}
}

func TestLatest(t *testing.T) {
	r, fake := newTestRegistry()
	seedVersion(fake, "lint", "1.2.0")
	seedVersion(fake, "lint", "1.3.5")

	got, err := r.Latest("lint")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != "1.3.5" {
		t.Errorf("Latest = %q, want 1.3.5", got)
	}

	_, err = r.Latest("ghost")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Name != "ghost" {
		t.Errorf("Latest(ghost) error = %v, want NotFoundError", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	r, _ := newTestRegistry()
	f := &Formula{
		Manifest: &manifest.Manifest{
			Name:    "core",
			Version: "1.0.0",
			Dependencies: []manifest.Dependency{
				{Name: "lint", Range: "^1.2.0"},
			},
		},
		Files: []File{
			{Path: "rules/style.md", Content: []byte("# style\n")},
			{Path: "ROOT.md", Content: []byte("root section\n")},
		},
	}
	if err := r.SaveFormula(f); err != nil {
		t.Fatalf("SaveFormula: %v", err)
	}

	got, err := r.LoadFormula("core", "1.0.0")
	if err != nil {
		t.Fatalf("LoadFormula: %v", err)
	}
	if got.Manifest.Name != "core" || got.Manifest.Version != "1.0.0" {
		t.Errorf("manifest = %s@%s", got.Manifest.Name, got.Manifest.Version)
	}
	if len(got.Manifest.Dependencies) != 1 || got.Manifest.Dependencies[0].Name != "lint" {
		t.Errorf("dependencies = %+v", got.Manifest.Dependencies)
	}
	// Files come back path-sorted and without the manifest.
	if len(got.Files) != 2 {
		t.Fatalf("Files = %d, want 2", len(got.Files))
	}
	if got.Files[0].Path != "ROOT.md" || got.Files[1].Path != "rules/style.md" {
		t.Errorf("file order = %q, %q", got.Files[0].Path, got.Files[1].Path)
	}
	if c, ok := got.FindFile("rules/style.md"); !ok || string(c) != "# style\n" {
		t.Errorf("FindFile = %q, %v", c, ok)
	}
}

func TestSaveReplacesExistingVersion(t *testing.T) {
	r, fake := newTestRegistry()
	f := &Formula{
		Manifest: &manifest.Manifest{Name: "core", Version: "1.0.0-wip"},
		Files:    []File{{Path: "rules/old.md", Content: []byte("old")}},
	}
	if err := r.SaveFormula(f); err != nil {
		t.Fatalf("SaveFormula: %v", err)
	}
	f.Files = []File{{Path: "rules/new.md", Content: []byte("new")}}
	if err := r.SaveFormula(f); err != nil {
		t.Fatalf("SaveFormula (second): %v", err)
	}

	if _, ok := fake.Files["/reg/core/1.0.0-wip/rules/old.md"]; ok {
		t.Error("stale file survived re-save of the same version slot")
	}
	got, err := r.LoadFormula("core", "1.0.0-wip")
	if err != nil {
		t.Fatalf("LoadFormula: %v", err)
	}
	if len(got.Files) != 1 || got.Files[0].Path != "rules/new.md" {
		t.Errorf("Files = %+v", got.Files)
	}
}

func TestLoadFormulaMissing(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.LoadFormula("ghost", "1.0.0")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Name != "ghost" || nf.Version != "1.0.0" {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

func TestDeleteVersion(t *testing.T) {
	r, fake := newTestRegistry()
	seedVersion(fake, "lint", "1.2.0")
	seedVersion(fake, "lint", "1.3.5")

	if err := r.DeleteVersion("lint", "1.2.0"); err != nil {
		t.Fatalf("DeleteVersion: %v", err)
	}
	vs, _ := r.ListVersions("lint")
	if len(vs) != 1 || vs[0] != "1.3.5" {
		t.Errorf("ListVersions = %v, want [1.3.5]", vs)
	}

	err := r.DeleteVersion("lint", "9.9.9")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("DeleteVersion(missing) = %v, want NotFoundError", err)
	}
}

func TestDeleteFormula(t *testing.T) {
	r, fake := newTestRegistry()
	seedVersion(fake, "lint", "1.2.0")

	if err := r.DeleteFormula("lint"); err != nil {
		t.Fatalf("DeleteFormula: %v", err)
	}
	if r.Exists("lint") {
		t.Error("Exists(lint) = true after delete")
	}
	if err := r.DeleteFormula("lint"); err == nil {
		t.Error("DeleteFormula(missing) = nil, want error")
	}
}

func TestScopedNames(t *testing.T) {
	r, _ := newTestRegistry()
	f := &Formula{
		Manifest: &manifest.Manifest{Name: "@acme/docs", Version: "0.3.0"},
		Files:    []File{{Path: "rules/docs.md", Content: []byte("d")}},
	}
	if err := r.SaveFormula(f); err != nil {
		t.Fatalf("SaveFormula: %v", err)
	}
	if !r.Exists("@acme/docs") {
		t.Fatal("Exists(@acme/docs) = false")
	}
	got, err := r.LoadFormula("@acme/docs", "0.3.0")
	if err != nil {
		t.Fatalf("LoadFormula: %v", err)
	}
	if got.Manifest.Name != "@acme/docs" {
		t.Errorf("Name = %q", got.Manifest.Name)
	}
}

func TestListFormulas(t *testing.T) {
	r, fake := newTestRegistry()
	seedVersion(fake, "lint", "1.2.0")
	seedVersion(fake, "@acme/docs", "0.3.0")
	fake.Dirs["/reg/@acme"] = true

	names, err := r.ListFormulas()
	if err != nil {
		t.Fatalf("ListFormulas: %v", err)
	}
	want := []string{"@acme/docs", "lint"}
	if len(names) != len(want) {
		t.Fatalf("ListFormulas = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListFormulas[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
