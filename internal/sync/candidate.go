// Package sync reconciles a formula's canonical registry content with
// its platform-specific workspace representations.
//
// Discovery builds candidate groups keyed by registry path; a pure
// analysis step decides each group's outcome; a thin orchestration
// layer consults the user only when analysis reports ambiguity.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	gosync "sync"
	"time"

	"github.com/alembic-run/alembic/internal/frontmatter"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/registry"
)

// Candidate is one concrete occurrence of a registry path: the local
// registry copy (Platform empty) or one platform's workspace copy.
type Candidate struct {
	RegistryPath string
	Platform     string // empty for the local registry copy
	Path         string // where the bytes were read from
	Content      []byte
	Hash         string
	ModTime      time.Time
}

// Local reports whether the candidate is the registry copy.
func (c Candidate) Local() bool { return c.Platform == "" }

// Label names the candidate for prompts and logs.
func (c Candidate) Label() string {
	if c.Local() {
		return "registry"
	}
	return c.Platform
}

// Group collects every candidate for one registry path. Workspace
// candidates keep platform detection order (insertion order).
type Group struct {
	RegistryPath string
	Root         bool
	Local        *Candidate
	Workspace    []Candidate
}

// Candidates returns local-then-workspace candidates.
func (g Group) Candidates() []Candidate {
	var out []Candidate
	if g.Local != nil {
		out = append(out, *g.Local)
	}
	return append(out, g.Workspace...)
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Loader discovers candidates for one formula across the local registry
// copy and every detected platform in a workspace.
type Loader struct {
	FS        fsys.FS
	Workspace string
	LocalDir  string // registry version dir for local mtimes, may be empty
	Name      string // formula name; falls back to the local manifest's
}

// BuildCandidateGroups partitions every discovered candidate into
// exactly one group keyed by registry path. Platform directories are
// scanned concurrently; each scan fills a private slot and results are
// merged sequentially in platform order. Frontmatter override sidecars
// are excluded — they are reconciled separately.
func (l *Loader) BuildCandidateGroups(local *registry.Formula, platforms []platform.Platform) ([]Group, error) {
	byPath := make(map[string]*Group)
	var order []string

	group := func(registryPath string) *Group {
		g, ok := byPath[registryPath]
		if !ok {
			g = &Group{
				RegistryPath: registryPath,
				Root:         registryPath == platform.RootPath,
			}
			byPath[registryPath] = g
			order = append(order, registryPath)
		}
		return g
	}

	name := l.Name
	if local != nil {
		if name == "" {
			name = local.Manifest.Name
		}
		for _, f := range local.Files {
			if _, _, isSidecar := platform.ParseSidecarPath(f.Path); isSidecar {
				continue
			}
			c := Candidate{
				RegistryPath: f.Path,
				Path:         f.Path,
				Content:      f.Content,
				Hash:         hashContent(f.Content),
			}
			if l.LocalDir != "" {
				abs := filepath.Join(l.LocalDir, f.Path)
				c.Path = abs
				if info, err := l.FS.Stat(abs); err == nil {
					c.ModTime = info.ModTime()
				}
			}
			g := group(f.Path)
			g.Local = &c
		}
	}

	scans := make([][]Candidate, len(platforms))
	errs := make([]error, len(platforms))
	var wg gosync.WaitGroup
	for i, p := range platforms {
		wg.Add(1)
		go func(i int, p platform.Platform) {
			defer wg.Done()
			scans[i], errs[i] = l.scanPlatform(p, name)
		}(i, p)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", platforms[i].ID, err)
		}
	}

	for _, cs := range scans {
		for _, c := range cs {
			g := group(c.RegistryPath)
			g.Workspace = append(g.Workspace, c)
		}
	}

	out := make([]Group, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out, nil
}

// LocalSidecars indexes the formula's override sidecars by registry
// path, with mtimes from the registry version dir when available.
func (l *Loader) LocalSidecars(local *registry.Formula) map[string]Candidate {
	out := make(map[string]Candidate)
	if local == nil {
		return out
	}
	for _, f := range local.Files {
		if _, _, isSidecar := platform.ParseSidecarPath(f.Path); !isSidecar {
			continue
		}
		c := Candidate{
			RegistryPath: f.Path,
			Path:         f.Path,
			Content:      f.Content,
			Hash:         hashContent(f.Content),
		}
		if l.LocalDir != "" {
			abs := filepath.Join(l.LocalDir, f.Path)
			c.Path = abs
			if info, err := l.FS.Stat(abs); err == nil {
				c.ModTime = info.ModTime()
			}
		}
		out[f.Path] = c
	}
	return out
}

// scanPlatform reads one platform's workspace files. The root file
// contributes a candidate only when it contains the formula's
// marker-delimited section.
func (l *Loader) scanPlatform(p platform.Platform, name string) ([]Candidate, error) {
	var out []Candidate

	rootPath := filepath.Join(l.Workspace, p.RootFile)
	if data, err := l.FS.ReadFile(rootPath); err == nil {
		if section, ok := platform.ExtractSection(string(data), name); ok {
			c := Candidate{
				RegistryPath: platform.RootPath,
				Platform:     p.ID,
				Path:         rootPath,
				Content:      []byte(section),
				Hash:         hashContent([]byte(section)),
			}
			if info, err := l.FS.Stat(rootPath); err == nil {
				c.ModTime = info.ModTime()
			}
			out = append(out, c)
		}
	}

	categories := make([]string, 0, len(p.Dirs))
	for cat := range p.Dirs {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		spec := p.Dirs[cat]
		dir := filepath.Join(l.Workspace, spec.Dir)
		entries, err := l.FS.ReadDir(dir)
		if err != nil {
			continue // platform dir absent
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			rel := filepath.Join(spec.Dir, entry.Name())
			registryPath, ok := p.RegistryPath(rel)
			if !ok {
				continue
			}
			abs := filepath.Join(l.Workspace, rel)
			data, err := l.FS.ReadFile(abs)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", abs, err)
			}
			c := Candidate{
				RegistryPath: registryPath,
				Platform:     p.ID,
				Path:         abs,
				Content:      data,
				Hash:         hashContent(data),
			}
			if info, err := entry.Info(); err == nil {
				c.ModTime = info.ModTime()
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// parseFrontmatter splits a candidate's content into frontmatter and
// body. Candidates without frontmatter yield an empty document.
func parseFrontmatter(c Candidate) (*frontmatter.Map, string, error) {
	front, body, ok := frontmatter.Split(string(c.Content))
	if !ok {
		return frontmatter.New(), string(c.Content), nil
	}
	m, err := frontmatter.Parse([]byte(front))
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: %w", c.Label(), c.RegistryPath, err)
	}
	return m, body, nil
}
