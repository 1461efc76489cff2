// Command genschema prints the JSON Schema for formula.toml manifests
// to stdout. Editors and CI use it to validate manifests:
//
//	go run ./cmd/genschema > formula-schema.json
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/alembic-run/alembic/internal/manifest"
)

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "genschema: %v\n", err) //nolint:errcheck // best-effort stderr
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}
	schema := r.Reflect(&manifest.Manifest{})
	schema.Title = "Formula Manifest"
	schema.Description = "Schema for formula.toml, the manifest of an alembic formula bundle."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}
	return nil
}
