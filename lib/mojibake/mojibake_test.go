package mojibake

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// mangle encodes s as utf-8 and decodes it as latin-1, n times.
func mangle(t testing.TB, s string, n int) string {
	for i := 0; i < n; i++ {
		var err error
		s, err = charmap.ISO8859_1.NewDecoder().String(s)
		if err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestRepair(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "ascii", input: "Titulo,Precio\r\nA Light in the Attic,51.77\r\n", expected: "Titulo,Precio\r\nA Light in the Attic,51.77\r\n"},
		{name: "already correct", input: "José Martínez, Ñuñoa", expected: "José Martínez, Ñuñoa"},
		{name: "single round", input: "JosÃ© MartÃ­nez", expected: "José Martínez"},
		{name: "double encoded", input: mangle(t, "Peña Ávila", 2), expected: "Peña Ávila"},
		{name: "triple encoded", input: mangle(t, "Gómez", 3), expected: "Gómez"},
		{name: "substitution", input: "<81>NGEL", expected: "ÁNGEL"},
		// the substituted rune is not valid utf-8 on its own once the text
		// goes through a correction round
		{name: "substitution lost to round", input: "<81>NGEL JosÃ©", expected: "NGEL José"},
		// legitimate text with a smell is over-corrected
		{name: "legitimate smell", input: "Âme", expected: "me"},
		{name: "lone replacement char dropped", input: "caf�", expected: "caf"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, Repair(test.input))
		})
	}
}

func TestRepairUnchangedWithoutSmells(t *testing.T) {
	inputs := []string{
		"plain",
		"naïve café, über, smørrebrød",
		"日本語のテキスト",
		"a,b,c\n1,2,3\n",
		"<82> is not a known token",
	}
	for _, in := range inputs {
		require.Equal(t, in, Repair(in))
	}
}

func TestRepairIdempotentAtFixpoint(t *testing.T) {
	r, err := NewRepairer(DefaultOptions())
	require.NoError(t, err)

	inputs := []string{
		"JosÃ©",
		mangle(t, "Ærøskøbing", 2),
		mangle(t, "€ 12,50", 1),
		"Âme",
		"",
	}
	for _, in := range inputs {
		once := Repair(in)
		if r.HasSmell(once) {
			continue
		}
		require.Equal(t, once, Repair(once), "input %q", in)
	}
}

func TestRoundBound(t *testing.T) {
	input := mangle(t, "é", 4)

	r, err := NewRepairer(Options{})
	require.NoError(t, err)
	report, err := r.RepairReport(input)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRounds, report.Rounds)
	require.Equal(t, mangle(t, "é", 1), report.Text)
	require.True(t, r.HasSmell(report.Text))

	r, err = NewRepairer(Options{MaxRounds: 4})
	require.NoError(t, err)
	report, err = r.RepairReport(input)
	require.NoError(t, err)
	require.Equal(t, 4, report.Rounds)
	require.Equal(t, "é", report.Text)

	r, err = NewRepairer(Options{MaxRounds: 1})
	require.NoError(t, err)
	report, err = r.RepairReport(input)
	require.NoError(t, err)
	require.Equal(t, 1, report.Rounds)
	require.Equal(t, mangle(t, "é", 3), report.Text)
}

func TestReplacementCharSurvivesBound(t *testing.T) {
	// after two rounds this is "ï¿½Ã", whose latin-1 bytes decode to a
	// replacement character on the third and final round
	input := mangle(t, "ï¿½Ã", 2)

	r, err := NewRepairer(DefaultOptions())
	require.NoError(t, err)
	report, err := r.RepairReport(input)
	require.NoError(t, err)
	require.Equal(t, "�", report.Text)
	require.Equal(t, DefaultMaxRounds, report.Rounds)
	require.Equal(t, 1, report.SmellsAfter)
}

func TestStrictPolicy(t *testing.T) {
	r, err := NewRepairer(Options{Policy: PolicyStrict})
	require.NoError(t, err)

	out, err := r.Repair("JosÃ©")
	require.NoError(t, err)
	require.Equal(t, "José", out)

	_, err = r.Repair("caf�")
	require.ErrorIs(t, err, ErrUnencodable)

	out, err = r.Repair("Âme")
	require.ErrorIs(t, err, ErrInvalidUTF8)
	// the text from before the failing round is returned
	require.Equal(t, "Âme", out)

	drop, err := NewRepairer(Options{Policy: PolicyDrop})
	require.NoError(t, err)
	out, err = drop.Repair("Âme")
	require.NoError(t, err)
	require.Equal(t, "me", out)
}

func TestReport(t *testing.T) {
	r, err := NewRepairer(DefaultOptions())
	require.NoError(t, err)

	report, err := r.RepairReport("<81>rea, caf�, JosÃ©")
	require.NoError(t, err)

	diff := cmp.Diff(Report{
		Text:         "rea, caf, José",
		Rounds:       1,
		Substituted:  1,
		SmellsBefore: 2,
		SmellsAfter:  0,
		DroppedRunes: 1,
		DroppedBytes: 1,
	}, report)
	if diff != "" {
		t.Fatal("unexpected report", diff)
	}
	require.True(t, report.Changed())

	report, err = r.RepairReport("nothing to do")
	require.NoError(t, err)
	require.False(t, report.Changed())
}

func TestCustomOptions(t *testing.T) {
	r, err := NewRepairer(Options{
		Substitutions: []Substitution{},
		Smells:        []string{"â€"},
	})
	require.NoError(t, err)

	// "Ã" is no longer a smell, so nothing happens
	out, err := r.Repair("JosÃ© <81>")
	require.NoError(t, err)
	require.Equal(t, "JosÃ© <81>", out)

	_, err = NewRepairer(Options{MaxRounds: -1})
	require.Error(t, err)
	_, err = NewRepairer(Options{Substitutions: []Substitution{{Old: "", New: "x"}}})
	require.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	for in, expected := range map[string]Policy{
		"":        PolicyDrop,
		"drop":    PolicyDrop,
		" STRICT": PolicyStrict,
		"fail":    PolicyStrict,
	} {
		p, err := ParsePolicy(in)
		require.NoError(t, err)
		require.Equal(t, expected, p)
	}
	_, err := ParsePolicy("maybe")
	require.Error(t, err)
	require.True(t, strings.HasPrefix(PolicyStrict.String(), "strict"))
}
