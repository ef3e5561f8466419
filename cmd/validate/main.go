// Command validate checks every scenario file in a directory and
// reports the ones that would be rejected at load time.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icusim/icu-sim/pkg/scenario"
)

func main() {
	dir := flag.String("dir", "./data/scenarios", "scenario directory to validate")
	flag.Parse()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *dir, err)
		os.Exit(1)
	}

	var checked, failed int
	for _, entry := range entries {
		var path string
		switch {
		case entry.IsDir():
			path = filepath.Join(*dir, entry.Name(), "scenario.json")
		case filepath.Ext(entry.Name()) == ".json":
			path = filepath.Join(*dir, entry.Name())
		default:
			continue
		}

		checked++
		if err := validateFile(path); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Printf("ok   %s\n", path)
	}

	fmt.Printf("%d scenarios checked, %d failed\n", checked, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s scenario.Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate()
}
