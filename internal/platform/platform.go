// Package platform maps canonical registry paths onto the directory and
// extension conventions of each supported AI-assistant integration.
//
// A formula bundle stores files at platform-neutral registry paths
// (rules/foo.md, commands/bar.md, ROOT.md). Each platform projects
// those paths into its own workspace layout: claude keeps markdown
// under .claude/, cursor rewrites rules to .mdc under .cursor/, and so
// on. Root content is special: every platform aliases the same logical
// ROOT.md through a marker-delimited section of its own top-level
// instructions file.
package platform

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/alembic-run/alembic/internal/fsys"
)

// RootPath is the registry path for marker-delimited root content.
const RootPath = "ROOT.md"

// DirSpec is one universal category's location in a platform workspace.
type DirSpec struct {
	Dir string // workspace-relative directory
	Ext string // file extension including the dot
}

// Platform describes one assistant integration.
type Platform struct {
	ID       string
	RootFile string // workspace-relative top-level instructions file
	Dirs     map[string]DirSpec
}

// builtins is ordered; detection and candidate iteration follow it.
var builtins = []Platform{
	{
		ID:       "claude",
		RootFile: "CLAUDE.md",
		Dirs: map[string]DirSpec{
			"rules":    {Dir: ".claude/rules", Ext: ".md"},
			"commands": {Dir: ".claude/commands", Ext: ".md"},
		},
	},
	{
		ID:       "cursor",
		RootFile: ".cursorrules",
		Dirs: map[string]DirSpec{
			"rules": {Dir: ".cursor/rules", Ext: ".mdc"},
		},
	},
	{
		ID:       "windsurf",
		RootFile: ".windsurfrules",
		Dirs: map[string]DirSpec{
			"rules": {Dir: ".windsurf/rules", Ext: ".md"},
		},
	},
	{
		ID:       "copilot",
		RootFile: ".github/copilot-instructions.md",
		Dirs:     map[string]DirSpec{},
	},
}

// All returns every supported platform in canonical order.
func All() []Platform {
	out := make([]Platform, len(builtins))
	copy(out, builtins)
	return out
}

// Lookup returns the platform with the given id.
func Lookup(id string) (Platform, bool) {
	for _, p := range builtins {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// Detect returns the platforms present in a workspace. A platform
// counts as present when its root file or any of its directories
// exists.
func Detect(fs fsys.FS, workspace string) []Platform {
	var out []Platform
	for _, p := range builtins {
		if _, err := fs.Stat(filepath.Join(workspace, p.RootFile)); err == nil {
			out = append(out, p)
			continue
		}
		for _, spec := range p.Dirs {
			if _, err := fs.Stat(filepath.Join(workspace, spec.Dir)); err == nil {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// WorkspacePath projects a registry path into a platform's workspace
// layout (relative to the workspace root). ok is false when the
// platform has no home for that path's category.
func (p Platform) WorkspacePath(registryPath string) (string, bool) {
	if registryPath == RootPath {
		return p.RootFile, true
	}
	category, rest, found := strings.Cut(registryPath, "/")
	if !found {
		return "", false
	}
	spec, ok := p.Dirs[category]
	if !ok {
		return "", false
	}
	base := strings.TrimSuffix(rest, path.Ext(rest))
	return path.Join(spec.Dir, base+spec.Ext), true
}

// RegistryPath maps a workspace-relative file back to its canonical
// registry path. ok is false for files outside the platform's layout.
func (p Platform) RegistryPath(workspacePath string) (string, bool) {
	if workspacePath == p.RootFile {
		return RootPath, true
	}
	for category, spec := range p.Dirs {
		prefix := spec.Dir + "/"
		if !strings.HasPrefix(workspacePath, prefix) {
			continue
		}
		rest := strings.TrimPrefix(workspacePath, prefix)
		if path.Ext(rest) != spec.Ext {
			continue
		}
		base := strings.TrimSuffix(rest, spec.Ext)
		return path.Join(category, base+".md"), true
	}
	return "", false
}

// SidecarPath returns the registry path of the frontmatter override
// sidecar for a markdown registry path and platform.
func SidecarPath(registryPath, platformID string) string {
	dir := path.Dir(registryPath)
	base := strings.TrimSuffix(path.Base(registryPath), path.Ext(registryPath))
	return path.Join(dir, base+"."+platformID+".yml")
}

// ParseSidecarPath inverts SidecarPath. ok is false when the path is
// not a recognized override sidecar.
func ParseSidecarPath(registryPath string) (markdownPath, platformID string, ok bool) {
	if path.Ext(registryPath) != ".yml" {
		return "", "", false
	}
	dir := path.Dir(registryPath)
	stem := strings.TrimSuffix(path.Base(registryPath), ".yml")
	base, id, found := cutLast(stem, ".")
	if !found {
		return "", "", false
	}
	if _, known := Lookup(id); !known {
		return "", "", false
	}
	return path.Join(dir, base+".md"), id, true
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
