// Command schema-generator writes the JSON Schema for stratus.yml to
// schema/stratus.schema.json. Run it from the repository root.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/stratustools/core/config"
)

func main() {
	data, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputDir := "schema"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "stratus.schema.json")
	if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Generated schema at %s", outputPath)
}
