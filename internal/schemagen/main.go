// Command schemagen writes the JSON schema of the toxwatch project
// configuration. Run it from the module root.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/toxwatch/api/v1beta1/configs"
	"github.com/macropower/toxwatch/pkg/yaml"
)

var outFile = flag.String("o", configs.SchemaFile, "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := yaml.NewSchemaGenerator(configs.NewBlank(),
		"github.com/macropower/toxwatch",
		"./api",
		"./pkg/execs",
		"./pkg/watch",
	)

	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
