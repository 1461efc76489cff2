// Package resolve walks a formula's declared dependencies against the
// local registry and produces a flat, conflict-free resolution plan.
//
// Resolution either fully succeeds or fails for the run: a conflict is
// reported as a structured [VersionConflict], never silently guessed
// away. Formulas absent from the registry entirely are collected into
// the plan's Missing list so callers can fetch them and re-resolve.
package resolve

import (
	"fmt"
	"strings"

	"github.com/alembic-run/alembic/internal/manifest"
	"github.com/alembic-run/alembic/internal/registry"
	"github.com/alembic-run/alembic/internal/version"
)

// Resolved is one entry of the resolution plan: a concrete (name, version).
type Resolved struct {
	Name    string
	Version string
}

// Missing records a dependency absent from the local registry.
type Missing struct {
	Name       string
	Constraint string
	RequiredBy string
}

// Resolution is a complete, conflict-free plan.
type Resolution struct {
	Formulas []Resolved // first-visit order, root first
	Missing  []Missing
}

// Find returns the resolved version for name.
func (r *Resolution) Find(name string) (string, bool) {
	for _, f := range r.Formulas {
		if f.Name == name {
			return f.Version, true
		}
	}
	return "", false
}

// VersionConflict reports that a single run required incompatible
// versions of one formula. Recoverable by pinning one of Available at
// the root and re-resolving from scratch.
type VersionConflict struct {
	Name      string
	Requested []string // the ranges or concrete versions demanded
	Available []string // versions physically present in the registry
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("version conflict for %q: requested %s, available %s",
		e.Name, strings.Join(e.Requested, ", "), strings.Join(e.Available, ", "))
}

// NoMatchError reports a formula that exists in the registry but has no
// version satisfying the requested constraint.
type NoMatchError struct {
	Name       string
	Constraint string
	Available  []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no version of %q satisfies %q (available: %s)",
		e.Name, e.Constraint, strings.Join(e.Available, ", "))
}

// Resolver resolves dependency trees against a local registry.
type Resolver struct {
	Registry *registry.Registry
}

// Request describes one resolution run.
type Request struct {
	// Name is the formula whose tree is resolved.
	Name string
	// Version is an optional explicit version or range for Name itself.
	// Takes precedence over every other source.
	Version string
	// Overrides are root-level exact pins. They outrank every
	// transitively inherited range for the named formula.
	Overrides map[string]string
	// IncludeDev resolves Name's dev dependencies as well. Dev
	// dependencies of dependencies are never resolved.
	IncludeDev bool
}

// state is the traversal bookkeeping, threaded explicitly — no
// package-level mutable state.
type state struct {
	onStack     map[string]bool     // cycle guard for the active path
	resolved    map[string]string   // name → concrete version
	order       []string            // first-visit order
	missing     []Missing
	constraints map[string][]string // aggregated declared ranges per name
	overrides   map[string]string
}

// Resolve produces a plan for the request, or fails with
// *VersionConflict, *NoMatchError, or *registry.NotFoundError.
func (r *Resolver) Resolve(req Request) (*Resolution, error) {
	st := &state{
		onStack:     make(map[string]bool),
		resolved:    make(map[string]string),
		constraints: r.gatherConstraints(req),
		overrides:   req.Overrides,
	}
	if err := r.resolveStep(req.Name, req.Version, "", req.IncludeDev, st); err != nil {
		return nil, err
	}
	res := &Resolution{Missing: st.missing}
	for _, name := range st.order {
		res.Formulas = append(res.Formulas, Resolved{Name: name, Version: st.resolved[name]})
	}
	return res, nil
}

// resolveStep resolves one formula and recurses into its dependencies.
// explicit is the caller-requested version or range — set for the root
// only; dependency edges contribute through the aggregated constraint
// set instead, so every visit of a name computes the same pick.
func (r *Resolver) resolveStep(name, explicit, requiredBy string, includeDev bool, st *state) error {
	// A name already on the active path is a cycle edge: treat it as
	// already satisfied. The registry is not guaranteed acyclic and most
	// real trees are shallow, so this leniency beats a hard error.
	if st.onStack[name] {
		return nil
	}

	available, err := r.Registry.ListVersions(name)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		st.missing = append(st.missing, Missing{
			Name:       name,
			Constraint: r.constraintLabel(name, explicit, st),
			RequiredBy: requiredBy,
		})
		return nil
	}

	concrete, err := pickVersion(name, explicit, available, st)
	if err != nil {
		return err
	}

	if prev, ok := st.resolved[name]; ok {
		if prev != concrete {
			// Two parts of the tree demand different concrete versions.
			// Never pick one silently — surface the conflict and let the
			// caller pin and retry.
			return &VersionConflict{Name: name, Requested: []string{prev, concrete}, Available: available}
		}
		return nil
	}
	st.resolved[name] = concrete
	st.order = append(st.order, name)

	m, err := r.Registry.LoadManifest(name, concrete)
	if err != nil {
		return err
	}

	st.onStack[name] = true
	defer delete(st.onStack, name)
	deps := m.Dependencies
	if includeDev {
		deps = append(append([]manifest.Dependency{}, deps...), m.DevDependencies...)
	}
	for _, d := range deps {
		if err := r.resolveStep(d.Name, "", name, false, st); err != nil {
			return err
		}
	}
	return nil
}

// pickVersion determines the concrete version to load for name.
// Precedence: explicit request > root override pin > aggregated global
// constraints > latest available.
func pickVersion(name, explicit string, available []string, st *state) (string, error) {
	if explicit != "" {
		v, ok, err := version.HighestSatisfying(available, explicit)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &NoMatchError{Name: name, Constraint: explicit, Available: available}
		}
		return v, nil
	}

	if pin, ok := st.overrides[name]; ok {
		v, ok, err := version.HighestSatisfying(available, pin)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &NoMatchError{Name: name, Constraint: pin, Available: available}
		}
		return v, nil
	}

	ranges := dedupe(st.constraints[name])
	if len(ranges) > 0 {
		// Highest available satisfying every range at once.
		for i := len(available) - 1; i >= 0; i-- {
			ok, err := version.Satisfies(available[i], ranges)
			if err != nil {
				return "", err
			}
			if ok {
				return available[i], nil
			}
		}
		if len(ranges) > 1 {
			// Several dependents, empty intersection: a true conflict,
			// reported with the ranges so the user can pick a side.
			return "", &VersionConflict{Name: name, Requested: ranges, Available: available}
		}
		return "", &NoMatchError{Name: name, Constraint: ranges[0], Available: available}
	}

	return available[len(available)-1], nil
}

// constraintLabel renders the constraint that applied to a missing
// formula, for remediation output.
func (r *Resolver) constraintLabel(name, explicit string, st *state) string {
	if explicit != "" {
		return explicit
	}
	if pin, ok := st.overrides[name]; ok {
		return pin
	}
	return strings.Join(dedupe(st.constraints[name]), ", ")
}

func dedupe(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// gatherer aggregates every declared range per name in one pre-pass
// over the tree, so the main traversal computes the same pick for a
// name no matter which branch reaches it first.
type gatherer struct {
	reg         *registry.Registry
	overrides   map[string]string
	constraints map[string][]string
	seen        map[string]bool
}

func newGatherer(reg *registry.Registry, overrides map[string]string) *gatherer {
	return &gatherer{
		reg:         reg,
		overrides:   overrides,
		constraints: make(map[string][]string),
		seen:        make(map[string]bool),
	}
}

func (g *gatherer) walk(name, requested string, dev bool) {
	if g.seen[name] {
		return
	}
	g.seen[name] = true
	available, err := g.reg.ListVersions(name)
	if err != nil || len(available) == 0 {
		return
	}
	// Tentative pick for manifest loading only: pin > request > latest.
	constraint := requested
	if pin, ok := g.overrides[name]; ok {
		constraint = pin
	}
	tentative := available[len(available)-1]
	if constraint != "" {
		if v, ok, err := version.HighestSatisfying(available, constraint); err == nil && ok {
			tentative = v
		}
	}
	m, err := g.reg.LoadManifest(name, tentative)
	if err != nil {
		return
	}
	g.walkDeps(m, dev)
}

func (g *gatherer) walkDeps(m *manifest.Manifest, dev bool) {
	deps := m.Dependencies
	if dev {
		deps = append(append([]manifest.Dependency{}, deps...), m.DevDependencies...)
	}
	for _, d := range deps {
		g.constraints[d.Name] = append(g.constraints[d.Name], d.Range)
		g.walk(d.Name, d.Range, false)
	}
}

// gatherConstraints pre-walks the tree rooted at a registry formula.
func (r *Resolver) gatherConstraints(req Request) map[string][]string {
	g := newGatherer(r.Registry, req.Overrides)
	g.walk(req.Name, req.Version, req.IncludeDev)
	return g.constraints
}

// ResolveProject resolves the dependency tree declared by a workspace
// manifest. The project itself need not be stored in the registry; its
// declared ranges and override pins act as the root constraint set.
func (r *Resolver) ResolveProject(m *manifest.Manifest, includeDev bool) (*Resolution, error) {
	g := newGatherer(r.Registry, m.Overrides)
	g.seen[m.Name] = true // a formula depending on its own project is a cycle edge
	g.walkDeps(m, includeDev)

	st := &state{
		onStack:     map[string]bool{m.Name: true},
		resolved:    make(map[string]string),
		constraints: g.constraints,
		overrides:   m.Overrides,
	}
	deps := m.Dependencies
	if includeDev {
		deps = append(append([]manifest.Dependency{}, deps...), m.DevDependencies...)
	}
	for _, d := range deps {
		if err := r.resolveStep(d.Name, "", m.Name, false, st); err != nil {
			return nil, err
		}
	}
	res := &Resolution{Missing: st.missing}
	for _, name := range st.order {
		res.Formulas = append(res.Formulas, Resolved{Name: name, Version: st.resolved[name]})
	}
	return res, nil
}

// ResolveProjectWithRetry is the pin-and-retry loop over
// [Resolver.ResolveProject]. pin must durably record the chosen version
// in the manifest's overrides (the next round re-reads them).
func (r *Resolver) ResolveProjectWithRetry(m *manifest.Manifest, includeDev bool, choose func(*VersionConflict) (string, error), pin func(name, ver string) error) (*Resolution, error) {
	for attempt := 0; attempt < 32; attempt++ {
		res, err := r.ResolveProject(m, includeDev)
		if err == nil {
			return res, nil
		}
		conflict, ok := err.(*VersionConflict)
		if !ok {
			return nil, err
		}
		chosen, err := choose(conflict)
		if err != nil {
			return nil, err
		}
		if err := pin(conflict.Name, chosen); err != nil {
			return nil, err
		}
		m.SetOverride(conflict.Name, chosen)
	}
	return nil, fmt.Errorf("resolution did not converge after 32 pin-and-retry rounds")
}

// ResolveWithRetry runs Resolve inside the pin-and-retry loop: on a
// VersionConflict it asks choose for a concrete version, records it via
// pin (typically into the root manifest's overrides), and re-resolves
// the whole tree from scratch with the updated pins. Re-resolving from
// scratch — rather than patching the in-flight traversal — keeps the
// final plan consistent with what is now durably declared, so a second
// run is idempotent.
func (r *Resolver) ResolveWithRetry(req Request, choose func(*VersionConflict) (string, error), pin func(name, ver string) error) (*Resolution, error) {
	// Each round pins one previously conflicting name, so the loop
	// terminates; the cap is a backstop against a misbehaving chooser.
	for attempt := 0; attempt < 32; attempt++ {
		res, err := r.Resolve(req)
		if err == nil {
			return res, nil
		}
		conflict, ok := err.(*VersionConflict)
		if !ok {
			return nil, err
		}
		chosen, err := choose(conflict)
		if err != nil {
			return nil, err
		}
		if err := pin(conflict.Name, chosen); err != nil {
			return nil, err
		}
		if req.Overrides == nil {
			req.Overrides = make(map[string]string)
		}
		req.Overrides[conflict.Name] = chosen
	}
	return nil, fmt.Errorf("resolution did not converge after 32 pin-and-retry rounds")
}
