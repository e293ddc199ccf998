// Package perforation resolves perforation policies and convolution geometry
// into the shapes every kernel of a perforated convolution agrees on.
package perforation

import "fmt"

// Mode selects which dimension a policy skips.
type Mode int

// Perforation modes.
const (
	ModeNone Mode = iota
	ModeRow
	ModeColumn
	ModeFilter
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRow:
		return "row"
	case ModeColumn:
		return "column"
	case ModeFilter:
		return "filter"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name back into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return ModeNone, nil
	case "row":
		return ModeRow, nil
	case "column", "col":
		return ModeColumn, nil
	case "filter":
		return ModeFilter, nil
	default:
		return ModeNone, Configurationf("unknown perforation mode %q", s)
	}
}

// Policy is a normalised perforation policy. The zero value is None.
//
// Fields are unexported so a Policy can only come from the constructors below,
// which never produce a column policy.
type Policy struct {
	mode  Mode
	start int
	every int
}

// None returns the policy that skips nothing.
func None() Policy {
	return Policy{}
}

// Row skips one output row out of every `every`, starting at start.
// every < 2 yields None.
func Row(start, every int) Policy {
	if every < 2 {
		return None()
	}
	return Policy{mode: ModeRow, start: start, every: every}
}

// Filter skips one kernel tap out of every `every`, starting at start.
// every < 2 yields None.
func Filter(start, every int) Policy {
	if every < 2 {
		return None()
	}
	return Policy{mode: ModeFilter, start: start, every: every}
}

// NewPolicy builds a policy from a mode tag. Column perforation has shape
// algebra (see Extents) but no kernels, so it fails here.
func NewPolicy(mode Mode, start, every int) (Policy, error) {
	switch mode {
	case ModeNone:
		return None(), nil
	case ModeRow:
		return Row(start, every), nil
	case ModeFilter:
		return Filter(start, every), nil
	case ModeColumn:
		return None(), Configurationf("column perforation is not implemented")
	default:
		return None(), Configurationf("unknown perforation mode %d", int(mode))
	}
}

// FromKnobs maps the raw approximation knobs onto a policy. The first knob
// greater than one wins, in the order row, column, filter.
func FromKnobs(row, col, skipEvery, offset int) (Policy, error) {
	switch {
	case row > 1:
		return NewPolicy(ModeRow, offset, row)
	case col > 1:
		return NewPolicy(ModeColumn, offset, col)
	case skipEvery > 1:
		return NewPolicy(ModeFilter, offset, skipEvery)
	default:
		return None(), nil
	}
}

// Mode returns the active mode.
func (p Policy) Mode() Mode { return p.mode }

// Start returns the first skipped index.
func (p Policy) Start() int { return p.start }

// Every returns the skip period, 0 for None.
func (p Policy) Every() int { return p.every }

// IsNone reports whether the policy skips nothing.
func (p Policy) IsNone() bool { return p.mode == ModeNone }

// String formats the policy.
func (p Policy) String() string {
	if p.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s(start=%d, every=%d)", p.mode, p.start, p.every)
}

// Validate checks the restrictions the kernels are compiled for.
func (p Policy) Validate() error {
	switch p.mode {
	case ModeNone:
		return nil
	case ModeRow, ModeFilter:
	default:
		return Configurationf("perforation mode %s is not supported", p.mode)
	}
	if p.start != 0 {
		return Configurationf("only start == 0 is supported, got %d", p.start)
	}
	return nil
}

// Skips reports whether index falls on the skip period: with start 0, one
// element out of every `every` is dropped, the last of each period.
func (p Policy) Skips(index int) bool {
	if p.every < 2 || index < p.start {
		return false
	}
	return (index-p.start+1)%p.every == 0
}

// EffectiveExtent returns how many of total elements survive skipping one out
// of every `every`.
func EffectiveExtent(total, every int) int {
	if every < 2 {
		return total
	}
	return total - total/every
}
