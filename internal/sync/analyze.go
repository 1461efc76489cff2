package sync

// Action is the outcome of analyzing one candidate group.
type Action int

const (
	// ActionSkip means the group needs no work.
	ActionSkip Action = iota
	// ActionTake means Selected becomes canonical without interaction.
	ActionTake
	// ActionPromptKeep means a local copy exists and a differing
	// workspace candidate (Selected) wants to replace it; the user
	// chooses keep-existing or overwrite.
	ActionPromptKeep
	// ActionPromptRoot means root-content resolution is ambiguous; the
	// user picks the canonical candidate from Options and which of the
	// rest to preserve as platform-specific files.
	ActionPromptRoot
)

// Analysis is a pure decision about one group. It never performs I/O.
type Analysis struct {
	Action   Action
	Selected *Candidate
	Options  []Candidate
}

// Analyze decides how a group resolves. force short-circuits both
// prompt outcomes: root ambiguity falls back to the newest candidate by
// insertion order, and non-root conflicts keep the workspace version.
func Analyze(g Group, force bool) Analysis {
	if len(g.Workspace) == 0 {
		return Analysis{Action: ActionSkip}
	}
	if g.Local != nil && allMatch(g.Workspace, g.Local.Hash) {
		return Analysis{Action: ActionSkip}
	}
	if g.Local == nil && len(g.Workspace) == 1 {
		return Analysis{Action: ActionTake, Selected: &g.Workspace[0]}
	}
	if g.Root {
		return analyzeRoot(g, force)
	}
	return analyzeFile(g, force)
}

func analyzeRoot(g Group, force bool) Analysis {
	all := g.Candidates()

	if sameHash(all) {
		// Content identical everywhere, tie-break on timestamp alone.
		latest := newest(all)
		return Analysis{Action: ActionTake, Selected: latest}
	}
	if distinctModTimes(all) {
		latest := newest(all)
		return Analysis{Action: ActionTake, Selected: latest}
	}
	if force {
		last := all[len(all)-1]
		return Analysis{Action: ActionTake, Selected: &last}
	}
	return Analysis{Action: ActionPromptRoot, Options: all}
}

func analyzeFile(g Group, force bool) Analysis {
	changed := g.Workspace
	if g.Local != nil {
		changed = nil
		for _, c := range g.Workspace {
			if c.Hash != g.Local.Hash {
				changed = append(changed, c)
			}
		}
	}
	if len(changed) == 0 {
		return Analysis{Action: ActionSkip}
	}
	winner := newest(changed)
	if g.Local == nil || force {
		return Analysis{Action: ActionTake, Selected: winner}
	}
	return Analysis{Action: ActionPromptKeep, Selected: winner}
}

func allMatch(cs []Candidate, hash string) bool {
	for _, c := range cs {
		if c.Hash != hash {
			return false
		}
	}
	return true
}

func sameHash(cs []Candidate) bool {
	for _, c := range cs[1:] {
		if c.Hash != cs[0].Hash {
			return false
		}
	}
	return true
}

func distinctModTimes(cs []Candidate) bool {
	seen := make(map[int64]bool, len(cs))
	for _, c := range cs {
		key := c.ModTime.UnixNano()
		if seen[key] {
			return false
		}
		seen[key] = true
	}
	return true
}

// newest picks the latest candidate by mtime; on ties, later insertion
// order wins.
func newest(cs []Candidate) *Candidate {
	best := 0
	for i := 1; i < len(cs); i++ {
		if !cs[i].ModTime.Before(cs[best].ModTime) {
			best = i
		}
	}
	return &cs[best]
}
