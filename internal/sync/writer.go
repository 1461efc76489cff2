package sync

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/alembic-run/alembic/internal/frontmatter"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/registry"
)

// Writer projects canonical bundles into workspace platform layouts.
// Individual file failures are logged to stderr but don't abort
// sibling files.
type Writer struct {
	FS        fsys.FS
	Workspace string
	Stderr    io.Writer
}

// WriteCounts reports one projection pass.
type WriteCounts struct {
	Written int
	Skipped int
}

// WriteFormula writes one formula's files into every given platform.
// Root content merges into each platform's root file through section
// markers; markdown files get the platform's sidecar override merged
// onto the universal frontmatter.
func (w *Writer) WriteFormula(f *registry.Formula, platforms []platform.Platform) WriteCounts {
	var counts WriteCounts
	for _, file := range f.Files {
		if _, _, isSidecar := platform.ParseSidecarPath(file.Path); isSidecar {
			continue
		}
		if file.Path == platform.RootPath {
			w.writeRoot(f, file, platforms, &counts)
			continue
		}
		for _, p := range platforms {
			rel, ok := p.WorkspacePath(file.Path)
			if !ok {
				continue
			}
			content, err := w.platformContent(f, file, p)
			if err != nil {
				fmt.Fprintf(w.Stderr, "sync: %s for %s: %v\n", file.Path, p.ID, err) //nolint:errcheck
				counts.Skipped++
				continue
			}
			if err := w.writeFile(filepath.Join(w.Workspace, rel), content); err != nil {
				fmt.Fprintf(w.Stderr, "sync: %v\n", err) //nolint:errcheck
				counts.Skipped++
				continue
			}
			counts.Written++
		}
	}
	return counts
}

// writeRoot merges the formula's root section into each platform's
// root file, creating the file when absent. An unchanged section
// leaves the file's bytes alone.
func (w *Writer) writeRoot(f *registry.Formula, file registry.File, platforms []platform.Platform, counts *WriteCounts) {
	for _, p := range platforms {
		path := filepath.Join(w.Workspace, p.RootFile)
		existing := ""
		if data, err := w.FS.ReadFile(path); err == nil {
			existing = string(data)
		}
		merged := platform.MergeSection(existing, f.Manifest.Name, string(file.Content))
		if merged == existing {
			counts.Skipped++
			continue
		}
		if err := w.writeFile(path, []byte(merged)); err != nil {
			fmt.Fprintf(w.Stderr, "sync: %v\n", err) //nolint:errcheck
			counts.Skipped++
			continue
		}
		counts.Written++
	}
}

// platformContent renders a canonical file for one platform: markdown
// gets the platform's override sidecar merged onto its frontmatter,
// everything else passes through unchanged.
func (w *Writer) platformContent(f *registry.Formula, file registry.File, p platform.Platform) ([]byte, error) {
	if !strings.HasSuffix(file.Path, ".md") {
		return file.Content, nil
	}
	scPath := platform.SidecarPath(file.Path, p.ID)
	scContent, ok := f.FindFile(scPath)
	if !ok {
		return file.Content, nil
	}
	front, body, ok := frontmatter.Split(string(file.Content))
	universal := frontmatter.New()
	if ok {
		var err error
		universal, err = frontmatter.Parse([]byte(front))
		if err != nil {
			return nil, fmt.Errorf("frontmatter in %s: %w", file.Path, err)
		}
	} else {
		body = string(file.Content)
	}
	override, err := frontmatter.Parse(scContent)
	if err != nil {
		return nil, fmt.Errorf("sidecar %s: %w", scPath, err)
	}
	merged, err := frontmatter.Compose(frontmatter.Merge(universal, override), body)
	if err != nil {
		return nil, err
	}
	return []byte(merged), nil
}

func (w *Writer) writeFile(path string, data []byte) error {
	if err := w.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(path), err)
	}
	if err := w.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}
