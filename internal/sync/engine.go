package sync

import (
	"fmt"
	"path"
	"strings"

	"github.com/alembic-run/alembic/internal/frontmatter"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/prompt"
	"github.com/alembic-run/alembic/internal/registry"
)

// Selection is one group's final resolution.
type Selection struct {
	Canonical Candidate
	// Preserve holds root-file candidates the user chose to keep as
	// platform-specific files alongside the canonical section.
	Preserve []Candidate
}

// Result is the outcome of a full synchronization pass.
type Result struct {
	Files   []registry.File // canonical bundle content, manifest excluded
	Updated int             // groups where workspace content won
	Skipped int             // groups left as-is
}

// Engine resolves candidate groups into a canonical bundle, consulting
// the prompter only when pure analysis reports ambiguity.
type Engine struct {
	Prompt prompt.Prompter
	Force  bool
}

// ResolveGroup resolves one group. A nil selection with nil error means
// the group is a no-op. Cancellation surfaces as [prompt.ErrCancelled]
// and aborts the caller's pass.
func (e *Engine) ResolveGroup(g Group) (*Selection, error) {
	a := Analyze(g, e.Force)
	switch a.Action {
	case ActionSkip:
		return nil, nil

	case ActionTake:
		return &Selection{Canonical: *a.Selected}, nil

	case ActionPromptKeep:
		question := fmt.Sprintf("%s differs between the registry and the %s workspace copy",
			g.RegistryPath, a.Selected.Label())
		choice, err := e.Prompt.Select(question, []string{
			"keep existing registry version",
			fmt.Sprintf("overwrite with %s version", a.Selected.Label()),
		})
		if err != nil {
			return nil, err
		}
		if choice == 0 {
			return nil, nil
		}
		return &Selection{Canonical: *a.Selected}, nil

	case ActionPromptRoot:
		labels := make([]string, len(a.Options))
		for i, c := range a.Options {
			labels[i] = c.Label()
		}
		question := fmt.Sprintf("root content for %s is ambiguous, pick the canonical copy", g.RegistryPath)
		choice, err := e.Prompt.Select(question, labels)
		if err != nil {
			return nil, err
		}
		sel := &Selection{Canonical: a.Options[choice]}
		for i, c := range a.Options {
			if i == choice || c.Local() {
				continue
			}
			keep, err := e.Prompt.Confirm(fmt.Sprintf("preserve the %s copy as a platform-specific file", c.Platform))
			if err != nil {
				return nil, err
			}
			if keep {
				sel.Preserve = append(sel.Preserve, c)
			}
		}
		return sel, nil
	}
	return nil, fmt.Errorf("unhandled action %d for %s", a.Action, g.RegistryPath)
}

// Run resolves every group and assembles the canonical bundle files.
// localSidecars maps sidecar registry paths to their registry copies,
// used for the newer-workspace override prompt.
func (e *Engine) Run(groups []Group, localSidecars map[string]Candidate) (*Result, error) {
	res := &Result{}
	for _, g := range groups {
		sel, err := e.ResolveGroup(g)
		if err != nil {
			return nil, err
		}
		if sel == nil {
			res.Skipped++
			if g.Local != nil {
				res.Files = append(res.Files, registry.File{Path: g.RegistryPath, Content: g.Local.Content})
				res.Files = append(res.Files, e.keepSidecars(g.RegistryPath, localSidecars)...)
			}
			continue
		}
		res.Updated++
		files, err := e.materialize(g, sel, localSidecars)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, files...)
	}
	return res, nil
}

// keepSidecars carries a skipped markdown file's existing sidecars into
// the new bundle unchanged.
func (e *Engine) keepSidecars(registryPath string, localSidecars map[string]Candidate) []registry.File {
	var out []registry.File
	for _, p := range platform.All() {
		sc := platform.SidecarPath(registryPath, p.ID)
		if c, ok := localSidecars[sc]; ok {
			out = append(out, registry.File{Path: sc, Content: c.Content})
		}
	}
	return out
}

// materialize turns one resolved group into bundle files: the canonical
// file, preserved platform root variants, and override sidecars.
func (e *Engine) materialize(g Group, sel *Selection, localSidecars map[string]Candidate) ([]registry.File, error) {
	if g.Root {
		files := []registry.File{{Path: g.RegistryPath, Content: sel.Canonical.Content}}
		for _, c := range sel.Preserve {
			p := platformVariantPath(g.RegistryPath, c.Platform)
			files = append(files, registry.File{Path: p, Content: c.Content})
		}
		return files, nil
	}
	if !strings.HasSuffix(g.RegistryPath, ".md") {
		return []registry.File{{Path: g.RegistryPath, Content: sel.Canonical.Content}}, nil
	}
	return e.reconcileMarkdown(g, sel, localSidecars)
}

// reconcileMarkdown writes the universal frontmatter into the canonical
// file and persists per-platform deltas as sidecars.
func (e *Engine) reconcileMarkdown(g Group, sel *Selection, localSidecars map[string]Candidate) ([]registry.File, error) {
	universal, overrides, byPlatform, err := reconcileFrontmatter(g.Workspace)
	if err != nil {
		return nil, err
	}

	_, body, err := parseFrontmatter(sel.Canonical)
	if err != nil {
		return nil, err
	}
	canonical, err := frontmatter.Compose(universal, body)
	if err != nil {
		return nil, err
	}
	files := []registry.File{{Path: g.RegistryPath, Content: []byte(canonical)}}

	for _, p := range platform.All() {
		override, ok := overrides[p.ID]
		scPath := platform.SidecarPath(g.RegistryPath, p.ID)
		if !ok {
			// No workspace candidate for this platform; keep any
			// existing sidecar untouched.
			if c, kept := localSidecars[scPath]; kept {
				files = append(files, registry.File{Path: scPath, Content: c.Content})
			}
			continue
		}
		if override.Len() == 0 {
			continue
		}
		data, err := frontmatter.Encode(override)
		if err != nil {
			return nil, err
		}
		local, exists := localSidecars[scPath]
		if !exists {
			files = append(files, registry.File{Path: scPath, Content: data})
			continue
		}
		keep, err := e.resolveSidecar(scPath, p.ID, universal, override, local, byPlatform[p.ID])
		if err != nil {
			return nil, err
		}
		if keep {
			files = append(files, registry.File{Path: scPath, Content: local.Content})
		} else {
			files = append(files, registry.File{Path: scPath, Content: data})
		}
	}
	return files, nil
}

// resolveSidecar decides between an existing registry sidecar and a
// freshly computed workspace override. Equal merged results or a newer
// registry copy keep the registry version silently; a newer workspace
// override prompts.
func (e *Engine) resolveSidecar(scPath, platformID string, universal, override *frontmatter.Map, local Candidate, workspace Candidate) (keepLocal bool, err error) {
	localOverride, err := frontmatter.Parse(local.Content)
	if err != nil {
		return false, fmt.Errorf("sidecar %s: %w", scPath, err)
	}
	workspaceMerged := frontmatter.Merge(universal, override)
	localMerged := frontmatter.Merge(universal, localOverride)
	if frontmatter.Equal(workspaceMerged, localMerged) {
		return true, nil
	}
	if !workspace.ModTime.After(local.ModTime) {
		return true, nil
	}
	if e.Force {
		return false, nil
	}
	choice, err := e.Prompt.Select(
		fmt.Sprintf("%s override for %s changed in the workspace", platformID, scPath),
		[]string{"keep existing registry override", "use workspace override"},
	)
	if err != nil {
		return false, err
	}
	return choice == 0, nil
}

// reconcileFrontmatter computes the universal frontmatter across all
// platform workspace candidates and each platform's remaining delta.
func reconcileFrontmatter(workspace []Candidate) (*frontmatter.Map, map[string]*frontmatter.Map, map[string]Candidate, error) {
	docs := make([]*frontmatter.Map, 0, len(workspace))
	byPlatform := make(map[string]Candidate, len(workspace))
	fronts := make(map[string]*frontmatter.Map, len(workspace))
	for _, c := range workspace {
		m, _, err := parseFrontmatter(c)
		if err != nil {
			return nil, nil, nil, err
		}
		docs = append(docs, m)
		fronts[c.Platform] = m
		byPlatform[c.Platform] = c
	}
	universal := frontmatter.Intersect(docs...)
	overrides := make(map[string]*frontmatter.Map, len(fronts))
	for id, m := range fronts {
		overrides[id] = frontmatter.Subtract(m, universal)
	}
	return universal, overrides, byPlatform, nil
}

// platformVariantPath is the registry home of a preserved
// platform-specific root copy.
func platformVariantPath(registryPath, platformID string) string {
	ext := path.Ext(registryPath)
	base := strings.TrimSuffix(registryPath, ext)
	return base + "." + platformID + ext
}
