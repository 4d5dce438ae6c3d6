// Command seedgen generates the sample shelter/alert fixture as JSON using
// the same generator the service seeds itself with, so a dataset can be
// inspected or committed for test assertions.
//
// Usage:
//
//	go run ./cmd/seedgen -seed 42 -out data/sample/dataset.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/reliefops/internal/seed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seedValue := flag.Int64("seed", 0, "generator seed (0 uses the current time)")
	out := flag.String("out", "", "output path for the JSON fixture (default stdout)")
	flag.Parse()

	sv := *seedValue
	if sv == 0 {
		sv = time.Now().UnixNano()
	}

	dataset := seed.Generate(rand.New(rand.NewSource(sv)), time.Now())
	log.Printf("generated %d shelters, %d alerts (seed %d)",
		len(dataset.Shelters), len(dataset.Alerts), sv)

	if *out == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dataset)
	}

	if err := writeJSON(*out, dataset); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)
	printStats(dataset)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(dataset seed.Dataset) {
	statusCounts := map[string]int{}
	for _, s := range dataset.Shelters {
		statusCounts[string(s.Status)]++
	}
	severityCounts := map[string]int{}
	for _, a := range dataset.Alerts {
		severityCounts[string(a.Severity)]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Shelters by status: operational=%d, overflow=%d, at-capacity=%d, critical=%d\n",
		statusCounts["operational"], statusCounts["overflow"],
		statusCounts["at-capacity"], statusCounts["critical"])
	fmt.Printf("Alerts by severity: info=%d, warning=%d, error=%d, critical=%d\n",
		severityCounts["info"], severityCounts["warning"],
		severityCounts["error"], severityCounts["critical"])
}
