package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fulldump/objectstore/store"
)

// LoadSeed reads the records of a YAML file. JSON is valid YAML, so JSON
// seed files work as well. An empty filename means no seed.
func LoadSeed(filename string) ([]store.Record, error) {

	if filename == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	records := []store.Record{}
	err = yaml.Unmarshal(data, &records)
	if err != nil {
		return nil, fmt.Errorf("decode seed '%s': %w", filename, err)
	}

	return records, nil
}
