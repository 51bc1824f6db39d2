package rule

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// LoadError reports a rule file that could not be parsed or validated.
type LoadError struct {
	File    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Load reads a rule file, choosing the format by extension: .cue for CUE,
// anything else as YAML (which includes JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// ParseYAML decodes a YAML or JSON rule document. Unknown keys are errors.
func ParseYAML(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return &cfg, nil
}

// ParseCUE evaluates a CUE rule document against the #Rules schema and
// decodes the concrete result.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Rules")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	js, err := unified.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(filename, err)
	}
	cfg, err := ParseYAML(js)
	if err != nil {
		return nil, &LoadError{File: filename, Message: err.Error()}
	}
	return cfg, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(file string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{File: file, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{File: file, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
