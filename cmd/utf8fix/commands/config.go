package commands

import (
	"fmt"
	"os"
	"time"
	"utf8fix/lib/configutil"
	"utf8fix/lib/csvrepair"

	"dario.cat/mergo"
)

const DefaultConfigName = "utf8fix.json5"

type BooksConfig struct {
	BaseUrl  string `json:"base_url"`
	Pages    int    `json:"pages"`
	Output   string `json:"output"`
	Database string `json:"database"`
	Details  bool   `json:"details"`
	// directory request dumps are written to, empty disables them
	DumpDir        string `json:"dump_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c BooksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type Config struct {
	Repair csvrepair.Config `json:"repair"`
	Books  BooksConfig      `json:"books"`
}

func DefaultConfig() Config {
	return Config{
		Repair: csvrepair.DefaultConfig(),
		Books: BooksConfig{
			Pages:          1,
			Output:         "libros.csv",
			TimeoutSeconds: 30,
		},
	}
}

// loadConfig reads `path` and fills anything it leaves unset with defaults.
// A missing file is only an error when `required` is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if os.IsNotExist(err) && !required {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	err = mergo.Merge(&cfg, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
