package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/copyleftdev/authscry/internal/scenario"
	"gopkg.in/yaml.v3"
)

// IsScriptPath reports whether arg names a script file rather than a label.
func IsScriptPath(arg string) bool {
	ext := strings.ToLower(filepath.Ext(arg))
	return ext == ".yaml" || ext == ".yml"
}

// Parse reads every YAML document in data as a Script. Unknown keys are
// rejected.
func Parse(data []byte, source string) ([]Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var scripts []Script
	for {
		var sc Script
		err := dec.Decode(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", source, err)
		}
		sc.Source = source
		scripts = append(scripts, sc)
	}
	return scripts, nil
}

// LoadFile reads the scripts in path.
func LoadFile(path string) ([]Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data, path)
}

// Load expands the glob patterns and reads every matching file, in sorted
// order. A pattern matching nothing is an error.
func Load(patterns ...string) ([]Script, error) {
	var scripts []Script
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad script pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no script files match %q", pattern)
		}
		sort.Strings(matches)
		for _, path := range matches {
			loaded, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			scripts = append(scripts, loaded...)
		}
	}
	return scripts, nil
}

// Register compiles scripts into c.
func Register(c *scenario.Catalog, scripts []Script) error {
	for _, sc := range scripts {
		compiled, err := sc.Scenario()
		if err != nil {
			return fmt.Errorf("%s: %w", sc.Source, err)
		}
		if err := c.Register(compiled); err != nil {
			return fmt.Errorf("%s: %w", sc.Source, err)
		}
	}
	return nil
}
