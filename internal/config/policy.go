package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
)

// LoadPolicy reads a fragility policy from a YAML file. An empty path yields the
// default policy. Keys missing from the file keep their default values.
//
//	weights:
//	  runway: 0.34
//	  burn_multiple: 0.22
//	  gross_margin: 0.18
//	  raise_timeline: 0.16
//	  debt_rate: 0.10
//	bands:
//	  moderate: 30
//	  fragile: 60
func LoadPolicy(path string) (elasticity.Policy, error) {
	if path == "" {
		return elasticity.DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return elasticity.Policy{}, fmt.Errorf("failed to read fragility policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy document
func ParsePolicy(data []byte) (elasticity.Policy, error) {
	policy := elasticity.DefaultPolicy()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return elasticity.Policy{}, &domain.ConfigurationError{
			Field:  "FRAGILITY_POLICY_FILE",
			Reason: fmt.Sprintf("is not a valid policy: %v", err),
		}
	}

	if err := policy.Validate(); err != nil {
		return elasticity.Policy{}, err
	}
	return policy, nil
}
