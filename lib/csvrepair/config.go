package csvrepair

import (
	"fmt"
	"strings"
	"utf8fix/lib/mojibake"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	DefaultSuffix         = "_utf8"
	DefaultSourceEncoding = "ISO-8859-1"
)

// Config replaces what used to be constants at the top of a script.
// Empty paths are skipped.
type Config struct {
	FilePath string `json:"file"`
	DirPath  string `json:"dir"`
	// inserted before the .csv extension of every output file
	Suffix string `json:"suffix"`
	// IANA name of the encoding the raw file bytes are decoded with
	// before the repair heuristic runs
	SourceEncoding string `json:"source_encoding"`

	MaxRounds     int                     `json:"max_rounds"`
	Policy        string                  `json:"policy"`
	Substitutions []mojibake.Substitution `json:"substitutions"`
	Smells        []string                `json:"smells"`
}

func DefaultConfig() Config {
	return Config{
		Suffix:         DefaultSuffix,
		SourceEncoding: DefaultSourceEncoding,
		MaxRounds:      mojibake.DefaultMaxRounds,
		Policy:         mojibake.PolicyDrop.String(),
	}
}

func (c Config) RepairOptions() (mojibake.Options, error) {
	policy, err := mojibake.ParsePolicy(c.Policy)
	if err != nil {
		return mojibake.Options{}, err
	}
	return mojibake.Options{
		MaxRounds:     c.MaxRounds,
		Policy:        policy,
		Substitutions: c.Substitutions,
		Smells:        c.Smells,
	}, nil
}

// LookupEncoding resolves an IANA encoding name such as "ISO-8859-1",
// "latin1" or "windows-1252".
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return charmap.ISO8859_1, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown source encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("source encoding %q is not supported", name)
	}
	return enc, nil
}
