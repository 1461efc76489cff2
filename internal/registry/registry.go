// Package registry implements the versioned local formula store.
//
// Bundles live in a directory tree <root>/<name>/<version>/ with the
// manifest reserved at the bundle root. Scoped names (@scope/name) nest
// one extra level. The registry is single-writer by convention; the CLI
// enforces that with a file lock at the process boundary.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/manifest"
	"github.com/alembic-run/alembic/internal/version"
)

// File is one bundle file: a registry-relative path and its content.
type File struct {
	Path    string // slash-separated, relative to the bundle root
	Content []byte
}

// Formula is a loaded bundle: its manifest plus its files in a stable
// (path-sorted) order. Files never includes the manifest itself.
type Formula struct {
	Manifest *manifest.Manifest
	Files    []File
}

// FindFile returns the content of the file at path, if present.
func (f *Formula) FindFile(path string) ([]byte, bool) {
	for _, file := range f.Files {
		if file.Path == path {
			return file.Content, true
		}
	}
	return nil, false
}

// NotFoundError reports a formula or version absent from the registry.
type NotFoundError struct {
	Name    string
	Version string // empty when the whole formula is missing
}

func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("formula %q not found in local registry", e.Name)
	}
	return fmt.Sprintf("formula %q version %s not found in local registry", e.Name, e.Version)
}

// Registry accesses formula bundles under a root directory.
type Registry struct {
	fs   fsys.FS
	root string
}

// New returns a Registry rooted at dir.
func New(fs fsys.FS, dir string) *Registry {
	return &Registry{fs: fs, root: dir}
}

// Root returns the registry root directory.
func (r *Registry) Root() string { return r.root }

// FormulaDir returns the directory holding all versions of name.
func (r *Registry) FormulaDir(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}

// VersionDir returns the bundle directory for one concrete version.
func (r *Registry) VersionDir(name, ver string) string {
	return filepath.Join(r.FormulaDir(name), ver)
}

// Exists reports whether any version of name is stored.
func (r *Registry) Exists(name string) bool {
	vs, err := r.ListVersions(name)
	return err == nil && len(vs) > 0
}

// ListVersions returns the versions physically present for name, sorted
// ascending semver-wise. A missing formula directory yields an empty list,
// not an error — callers distinguish "absent" via Exists or the length.
func (r *Registry) ListVersions(name string) ([]string, error) {
	entries, err := r.fs.ReadDir(r.FormulaDir(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing versions of %q: %w", name, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	version.Sort(versions)
	return versions, nil
}

// Latest returns the highest stored version of name.
func (r *Registry) Latest(name string) (string, error) {
	vs, err := r.ListVersions(name)
	if err != nil {
		return "", err
	}
	if len(vs) == 0 {
		return "", &NotFoundError{Name: name}
	}
	return vs[len(vs)-1], nil
}

// LoadManifest reads and validates the manifest of one stored version.
func (r *Registry) LoadManifest(name, ver string) (*manifest.Manifest, error) {
	data, err := r.fs.ReadFile(filepath.Join(r.VersionDir(name, ver), manifest.Filename))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Name: name, Version: ver}
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest of %s@%s: %w", name, ver, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest of %s@%s: %w", name, ver, err)
	}
	if err := manifest.Validate(m); err != nil {
		return nil, fmt.Errorf("manifest of %s@%s: %w", name, ver, err)
	}
	return m, nil
}

// LoadFormula reads a complete bundle: manifest plus all files.
func (r *Registry) LoadFormula(name, ver string) (*Formula, error) {
	m, err := r.LoadManifest(name, ver)
	if err != nil {
		return nil, err
	}
	dir := r.VersionDir(name, ver)
	var files []File
	if err := r.walk(dir, "", &files); err != nil {
		return nil, fmt.Errorf("loading %s@%s: %w", name, ver, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &Formula{Manifest: m, Files: files}, nil
}

// walk collects every file under dir/rel into out, excluding the manifest.
func (r *Registry) walk(dir, rel string, out *[]File) error {
	abs := dir
	if rel != "" {
		abs = filepath.Join(dir, filepath.FromSlash(rel))
	}
	entries, err := r.fs.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("reading %q: %w", abs, err)
	}
	for _, e := range entries {
		entryRel := e.Name()
		if rel != "" {
			entryRel = rel + "/" + e.Name()
		}
		if e.IsDir() {
			if err := r.walk(dir, entryRel, out); err != nil {
				return err
			}
			continue
		}
		if entryRel == manifest.Filename {
			continue
		}
		data, err := r.fs.ReadFile(filepath.Join(dir, filepath.FromSlash(entryRel)))
		if err != nil {
			return fmt.Errorf("reading %q: %w", entryRel, err)
		}
		*out = append(*out, File{Path: entryRel, Content: data})
	}
	return nil
}

// SaveFormula writes a bundle under its manifest's (name, version),
// replacing any existing copy of that exact version. Re-saving the same
// WIP slot therefore overwrites rather than accumulating versions.
func (r *Registry) SaveFormula(f *Formula) error {
	if err := manifest.Validate(f.Manifest); err != nil {
		return err
	}
	dir := r.VersionDir(f.Manifest.Name, f.Manifest.Version)
	if _, err := r.fs.Stat(dir); err == nil {
		if err := r.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("replacing %s@%s: %w", f.Manifest.Name, f.Manifest.Version, err)
		}
	}
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s@%s: %w", f.Manifest.Name, f.Manifest.Version, err)
	}
	data, err := manifest.Encode(f.Manifest)
	if err != nil {
		return err
	}
	if err := r.fs.WriteFile(filepath.Join(dir, manifest.Filename), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest of %s@%s: %w", f.Manifest.Name, f.Manifest.Version, err)
	}
	for _, file := range f.Files {
		dst := filepath.Join(dir, filepath.FromSlash(file.Path))
		if err := r.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating directory for %q: %w", file.Path, err)
		}
		if err := r.fs.WriteFile(dst, file.Content, 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", file.Path, err)
		}
	}
	return nil
}

// DeleteVersion removes one stored version of name.
func (r *Registry) DeleteVersion(name, ver string) error {
	dir := r.VersionDir(name, ver)
	if _, err := r.fs.Stat(dir); err != nil {
		return &NotFoundError{Name: name, Version: ver}
	}
	if err := r.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting %s@%s: %w", name, ver, err)
	}
	return nil
}

// DeleteFormula removes every stored version of name.
func (r *Registry) DeleteFormula(name string) error {
	if !r.Exists(name) {
		return &NotFoundError{Name: name}
	}
	if err := r.fs.RemoveAll(r.FormulaDir(name)); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// ListFormulas returns every formula name with at least one stored
// version, sorted. Scoped names are reported in @scope/name form.
func (r *Registry) ListFormulas() ([]string, error) {
	entries, err := r.fs.ReadDir(r.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing registry: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := r.fs.ReadDir(filepath.Join(r.root, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("listing scope %q: %w", e.Name(), err)
			}
			for _, s := range scoped {
				if s.IsDir() {
					names = append(names, e.Name()+"/"+s.Name())
				}
			}
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
