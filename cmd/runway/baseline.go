package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/runway/internal/domain"
)

// loadBaseline reads a YAML baseline. Values go through the same unit parsing as
// user-entered form fields.
func loadBaseline(path string) (domain.Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Baseline{}, fmt.Errorf("read baseline: %w", err)
	}
	return parseBaseline(data)
}

func parseBaseline(data []byte) (domain.Baseline, error) {
	var raw domain.RawBaseline
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return domain.Baseline{}, &domain.InputError{Reason: "baseline file is not valid YAML", Err: err}
	}
	return raw.Normalize()
}
