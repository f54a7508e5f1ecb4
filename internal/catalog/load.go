package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/slim/internal/slim"
)

//go:embed schema.cue
var schemaSource []byte

var resourceName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadError is a catalog error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// invalid wraps a load failure as an ARGUMENT error.
func invalid(source string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return slim.NewArgumentError(source, "invalid catalog").WithCause(le)
	}
	if slim.CodeOf(err) != "" {
		return err
	}
	return slim.NewArgumentError(source, "invalid catalog").WithCause(err)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// LoadFile loads a catalog from a .cue, .yaml or .yml file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return LoadCUE(path, data)
	case ".yaml", ".yml":
		return LoadYAML(path, bytes.NewReader(data))
	}
	return nil, slim.NewArgumentError(path, "unsupported catalog format %q", filepath.Ext(path))
}

// LoadCUE compiles a CUE catalog and validates it against the catalog
// schema. filename is used in positions.
func LoadCUE(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Catalog"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, invalid(filename, formatCUEError(err))
	}
	v := schema.Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, invalid(filename, formatCUEError(err))
	}

	known, err := cueStrings(v.LookupPath(cue.ParsePath("known")))
	if err != nil {
		return nil, invalid(filename, err)
	}
	var resources []*Resource
	if rv := v.LookupPath(cue.ParsePath("resources")); rv.Exists() {
		iter, err := rv.Fields()
		if err != nil {
			return nil, invalid(filename, formatCUEError(err))
		}
		for iter.Next() {
			r, err := cueResource(iter.Label(), iter.Value())
			if err != nil {
				return nil, invalid(filename, err)
			}
			resources = append(resources, r)
		}
	}
	c, err := newCatalog(known, resources)
	if err != nil {
		return nil, invalid(filename, err)
	}
	return c, nil
}

func cueStrings(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func cueResource(name string, v cue.Value) (*Resource, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	typeName, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t, err := ParseType(typeName)
	if err != nil {
		return nil, &LoadError{Field: name + ".type", Message: err.Error(), Pos: typeVal.Pos()}
	}
	r := &Resource{Name: name, Type: t}
	if dv := v.LookupPath(cue.ParsePath("description")); dv.Exists() {
		if r.Description, err = dv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return r, nil
}

type yamlCatalog struct {
	Known     []string                `yaml:"known"`
	Resources map[string]yamlResource `yaml:"resources"`
}

type yamlResource struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// LoadYAML decodes a YAML catalog. Unknown fields are rejected.
func LoadYAML(filename string, r io.Reader) (*Catalog, error) {
	var doc yamlCatalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, invalid(filename, fmt.Errorf("failed to parse YAML: %w", err))
	}
	resources := make([]*Resource, 0, len(doc.Resources))
	for name, res := range doc.Resources {
		if !resourceName.MatchString(name) {
			return nil, invalid(filename, &LoadError{Field: name, Message: "resource name is not an identifier"})
		}
		if res.Type == "" {
			return nil, invalid(filename, &LoadError{Field: name + ".type", Message: "type is required"})
		}
		t, err := ParseType(res.Type)
		if err != nil {
			return nil, invalid(filename, err)
		}
		resources = append(resources, &Resource{Name: name, Type: t, Description: res.Description})
	}
	for _, k := range doc.Known {
		if k == "" {
			return nil, invalid(filename, &LoadError{Field: "known", Message: "empty type name"})
		}
	}
	c, err := newCatalog(doc.Known, resources)
	if err != nil {
		return nil, invalid(filename, err)
	}
	return c, nil
}
