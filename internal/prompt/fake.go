package prompt

import "fmt"

// Fake is a scripted [Prompter] for tests. Answers are consumed in
// order; running out of answers is a test-setup error.
type Fake struct {
	Selections []int    // consumed by Select
	Confirms   []bool   // consumed by Confirm
	Inputs     []string // consumed by Input
	Err        error    // returned by every call when set

	Questions []string // spy log of questions asked
}

// Select implements [Prompter].
func (f *Fake) Select(question string, options []string) (int, error) {
	f.Questions = append(f.Questions, question)
	if f.Err != nil {
		return 0, f.Err
	}
	if len(f.Selections) == 0 {
		return 0, fmt.Errorf("unscripted Select(%q)", question)
	}
	n := f.Selections[0]
	f.Selections = f.Selections[1:]
	return n, nil
}

// Confirm implements [Prompter].
func (f *Fake) Confirm(question string) (bool, error) {
	f.Questions = append(f.Questions, question)
	if f.Err != nil {
		return false, f.Err
	}
	if len(f.Confirms) == 0 {
		return false, fmt.Errorf("unscripted Confirm(%q)", question)
	}
	v := f.Confirms[0]
	f.Confirms = f.Confirms[1:]
	return v, nil
}

// Input implements [Prompter].
func (f *Fake) Input(question, def string) (string, error) {
	f.Questions = append(f.Questions, question)
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Inputs) == 0 {
		return def, nil
	}
	v := f.Inputs[0]
	f.Inputs = f.Inputs[1:]
	return v, nil
}

var _ Prompter = (*Fake)(nil)
