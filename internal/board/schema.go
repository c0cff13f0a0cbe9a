package board

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError is a board-file schema violation. It is a configuration
// error: detected before anything else runs, always fatal, never retried.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return "board schema: " + e.Message
}

// validateSchema unifies the YAML document with the embedded CUE schema.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func validateSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &SchemaError{Message: fmt.Sprintf("not a YAML mapping: %v", err)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		// Embedded schema failing to compile is a build bug, not a user error.
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Board"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Board: %w", err)
	}

	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return &SchemaError{Message: fmt.Sprintf("encode document: %v", err)}
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Message: formatCUEErrors(err)}
	}
	return nil
}

// formatCUEErrors flattens a CUE error list into one readable message.
func formatCUEErrors(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return msg
}
