package artifact

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// Check parses, lowers and validates the artifact's source with naga.
func (a *Artifact) Check() error {
	return CheckSource(a.Source)
}

// CheckSource runs the WGSL front end over source and reports the first
// failing stage. Validation findings are joined into one error.
func CheckSource(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("wgsl: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("wgsl: lower: %w", err)
	}
	findings, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("wgsl: validate: %w", err)
	}
	if len(findings) == 0 {
		return nil
	}
	errs := make([]error, len(findings))
	for i, f := range findings {
		errs[i] = f
	}
	return fmt.Errorf("wgsl: %d validation errors: %w", len(findings), errors.Join(errs...))
}
