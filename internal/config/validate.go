package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"
)

//go:embed schema.cue
var schemaSource string

// ReservedSlugs are top-level entries of a results tree that a scenario
// directory must not shadow.
var ReservedSlugs = []string{"config.json", "report.json", "index.html"}

// validateSchema checks the decoded configuration against #Config.
func validateSchema(c Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return &ConfigError{Message: "failed to encode configuration", Err: err}
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ConfigError{Message: "schema violation", Err: err}
	}
	return nil
}

// validateNames NFC-normalizes slugs and golden names in place and checks
// that each one is unique within its scope and usable as a directory name.
func validateNames(c Config) error {
	slugs := make(map[string]int, len(c))
	for i := range c {
		s := &c[i]
		s.Slug = norm.NFC.String(s.Slug)

		field := fmt.Sprintf("[%d].slug", i)
		if err := checkPathElement(s.Slug); err != nil {
			return &ConfigError{Field: field, Message: err.Error()}
		}
		for _, reserved := range ReservedSlugs {
			if strings.EqualFold(s.Slug, reserved) {
				return &ConfigError{Field: field, Message: fmt.Sprintf("slug %q is reserved", s.Slug)}
			}
		}
		if prev, ok := slugs[s.Slug]; ok {
			return &ConfigError{Field: field, Message: fmt.Sprintf("duplicate slug %q (also at [%d])", s.Slug, prev)}
		}
		slugs[s.Slug] = i

		names := make(map[string]int, len(s.Goldens))
		for j := range s.Goldens {
			g := &s.Goldens[j]
			g.Name = norm.NFC.String(g.Name)

			field := fmt.Sprintf("[%d].goldens[%d].name", i, j)
			if err := checkPathElement(g.Name); err != nil {
				return &ConfigError{Field: field, Message: err.Error()}
			}
			if prev, ok := names[g.Name]; ok {
				return &ConfigError{Field: field, Message: fmt.Sprintf("duplicate golden name %q in scenario %q (also at goldens[%d])", g.Name, s.Slug, prev)}
			}
			names[g.Name] = j
		}
	}
	return nil
}

// checkPathElement rejects names that would escape or alias their parent
// directory in the output tree.
func checkPathElement(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("must not be blank")
	case name == "." || name == "..":
		return fmt.Errorf("%q is not a valid name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%q must not contain path separators", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%q must not contain NUL", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%q must not start with a dot", name)
	}
	return nil
}
