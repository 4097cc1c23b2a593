// Package main regenerates the JSON Schema for exported portlang documents.
//
//	go run ./tools/schemagen -o pkg/export/schema/document-schema.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/export/schema"
)

const outputPerm = 0o644

func main() {
	out := flag.String("o", "pkg/export/schema/document-schema.json", "output file, - for stdout")
	flag.Parse()

	data, err := schema.Marshal(schema.Generate(export.SchemaTitle, &export.Document{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *out == "-" {
		_, _ = os.Stdout.Write(data)

		return
	}

	err = os.WriteFile(*out, data, outputPerm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", *out)
}
