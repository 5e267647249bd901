// Package mojibake repairs text that was encoded as UTF-8 and then decoded
// one or more times as Latin-1, e.g. "JosÃ© MartÃ­nez" instead of
// "José Martínez".
//
// The repair is a heuristic. Text that legitimately contains one of the
// smell substrings ("Ã", "Â", "�") is indistinguishable from corrupted text
// and will be rewritten anyway.
package mojibake

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxRounds bounds how many times the latin-1 -> utf-8 reinterpretation
// is applied. It is a heuristic bound, not a convergence guarantee.
const DefaultMaxRounds = 3

var (
	ErrUnencodable = errors.New("rune is not representable in latin-1")
	ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")
)

// Policy decides what happens to runes that cannot be encoded as latin-1 and
// to byte sequences that are not valid utf-8 during a correction round.
type Policy int

const (
	// PolicyDrop silently discards the offending rune or byte.
	PolicyDrop Policy = iota
	// PolicyStrict aborts the repair and returns an error.
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyStrict:
		return "strict"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "drop" or "strict", an empty string means drop.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop", "ignore":
		return PolicyDrop, nil
	case "strict", "fail":
		return PolicyStrict, nil
	}
	return PolicyDrop, fmt.Errorf("unknown decode policy %q", s)
}

type Substitution struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// DefaultSubstitutions fixes a single observed artifact: a 0x81 control byte
// rendered by an editor as the literal text "<81>".
func DefaultSubstitutions() []Substitution {
	return []Substitution{{Old: "<81>", New: "Á"}}
}

// DefaultSmells returns the substrings whose presence suggests mojibake.
// The first two are what utf-8 lead bytes 0xC3 and 0xC2 look like in latin-1,
// the last one is the replacement character left behind by lost bytes.
func DefaultSmells() []string {
	return []string{"Ã", "Â", "�"}
}

type Options struct {
	// 0 means DefaultMaxRounds.
	MaxRounds int
	Policy    Policy
	// nil means DefaultSubstitutions, an empty non-nil slice disables them.
	Substitutions []Substitution
	// nil means DefaultSmells.
	Smells []string
}

func DefaultOptions() Options {
	return Options{
		MaxRounds:     DefaultMaxRounds,
		Policy:        PolicyDrop,
		Substitutions: DefaultSubstitutions(),
		Smells:        DefaultSmells(),
	}
}

type Repairer struct {
	maxRounds int
	policy    Policy
	replacer  *strings.Replacer
	subs      []Substitution
	smells    []string
}

func NewRepairer(opts Options) (*Repairer, error) {
	if opts.MaxRounds < 0 {
		return nil, fmt.Errorf("max rounds must not be negative, got %d", opts.MaxRounds)
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Substitutions == nil {
		opts.Substitutions = DefaultSubstitutions()
	}
	if opts.Smells == nil {
		opts.Smells = DefaultSmells()
	}
	if opts.Policy != PolicyDrop && opts.Policy != PolicyStrict {
		return nil, fmt.Errorf("unknown policy %v", opts.Policy)
	}

	pairs := make([]string, 0, len(opts.Substitutions)*2)
	for _, s := range opts.Substitutions {
		if s.Old == "" {
			return nil, fmt.Errorf("substitution for %q has an empty pattern", s.New)
		}
		pairs = append(pairs, s.Old, s.New)
	}
	smells := make([]string, 0, len(opts.Smells))
	for _, s := range opts.Smells {
		if s != "" {
			smells = append(smells, s)
		}
	}

	return &Repairer{
		maxRounds: opts.MaxRounds,
		policy:    opts.Policy,
		replacer:  strings.NewReplacer(pairs...),
		subs:      opts.Substitutions,
		smells:    smells,
	}, nil
}

var defaultRepairer, _ = NewRepairer(DefaultOptions())

// Repair applies the heuristic with the default options. It never fails,
// anything that cannot be reinterpreted is dropped.
func Repair(text string) string {
	report, _ := defaultRepairer.RepairReport(text)
	return report.Text
}

// Report describes a single repair.
type Report struct {
	Text string
	// number of correction rounds that actually ran
	Rounds       int
	Substituted  int
	SmellsBefore int
	SmellsAfter  int
	DroppedRunes int
	DroppedBytes int
}

// Changed reports whether the repair altered the input text.
func (r Report) Changed() bool {
	return r.Rounds > 0 || r.Substituted > 0
}

func (r *Repairer) Repair(text string) (string, error) {
	report, err := r.RepairReport(text)
	return report.Text, err
}

func (r *Repairer) RepairReport(text string) (Report, error) {
	report := Report{}
	for _, s := range r.subs {
		report.Substituted += strings.Count(text, s.Old)
	}
	if report.Substituted > 0 {
		text = r.replacer.Replace(text)
	}
	report.SmellsBefore = r.CountSmells(text)

	for report.Rounds < r.maxRounds && r.HasSmell(text) {
		next, runes, nbytes, err := r.reinterpret(text)
		if err != nil {
			report.Text = text
			report.SmellsAfter = r.CountSmells(text)
			return report, fmt.Errorf("round %d: %w", report.Rounds+1, err)
		}
		text = next
		report.DroppedRunes += runes
		report.DroppedBytes += nbytes
		report.Rounds++
	}

	report.Text = text
	report.SmellsAfter = r.CountSmells(text)
	return report, nil
}

func (r *Repairer) HasSmell(text string) bool {
	for _, s := range r.smells {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (r *Repairer) CountSmells(text string) int {
	n := 0
	for _, s := range r.smells {
		n += strings.Count(text, s)
	}
	return n
}

// reinterpret encodes text as latin-1 and decodes the resulting bytes as utf-8.
func (r *Repairer) reinterpret(text string) (string, int, int, error) {
	raw := make([]byte, 0, len(text))
	droppedRunes := 0
	for i, c := range text {
		b, ok := charmap.ISO8859_1.EncodeRune(c)
		if !ok {
			if r.policy == PolicyStrict {
				return "", 0, 0, fmt.Errorf("%w: %q at offset %d", ErrUnencodable, c, i)
			}
			droppedRunes++
			continue
		}
		raw = append(raw, b)
	}

	var out strings.Builder
	out.Grow(len(raw))
	droppedBytes := 0
	for i := 0; i < len(raw); {
		c, size := utf8.DecodeRune(raw[i:])
		if c == utf8.RuneError && size <= 1 {
			if r.policy == PolicyStrict {
				return "", 0, 0, fmt.Errorf("%w: byte 0x%02x at offset %d", ErrInvalidUTF8, raw[i], i)
			}
			droppedBytes++
			i++
			continue
		}
		out.Write(raw[i : i+size])
		i += size
	}

	return out.String(), droppedRunes, droppedBytes, nil
}
