package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"ecoledger/pkg/domain"
	pstrings "ecoledger/pkg/platform/strings"
)

// Rules is the versioned validation rule set configuration.
type Rules struct {
	Version     string
	Quantity    QuantityRule
	Location    LocationRule
	Attachments AttachmentRule
}

// QuantityRule bounds are inclusive.
type QuantityRule struct {
	Min domain.Quantity
	Max domain.Quantity
}

type LocationRule struct {
	ValidateCoordinates bool
}

type AttachmentRule struct {
	Required      bool
	MinCount      int
	RequiredTypes []string
}

// rulesFile is the on-disk YAML shape. Quantities are strings so that
// decimal bounds survive without float rounding.
type rulesFile struct {
	Version  string `yaml:"version"`
	Quantity struct {
		Min string `yaml:"min"`
		Max string `yaml:"max"`
	} `yaml:"quantity"`
	Location struct {
		ValidateCoordinates bool `yaml:"validate_coordinates"`
	} `yaml:"location"`
	Attachments struct {
		Required      bool     `yaml:"required"`
		MinCount      int      `yaml:"min_count"`
		RequiredTypes []string `yaml:"required_types"`
	} `yaml:"attachments"`
}

// LoadRules reads a YAML rule set. Fields left out keep their defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("load rules %q: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule set document.
func ParseRules(data []byte) (Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}

	rules := DefaultRules()
	if v := strings.TrimSpace(f.Version); v != "" {
		rules.Version = v
	}
	if f.Quantity.Min != "" {
		q, err := domain.ParseQuantity(f.Quantity.Min)
		if err != nil {
			return Rules{}, fmt.Errorf("parse rules: quantity.min: %w", err)
		}
		rules.Quantity.Min = q
	}
	if f.Quantity.Max != "" {
		q, err := domain.ParseQuantity(f.Quantity.Max)
		if err != nil {
			return Rules{}, fmt.Errorf("parse rules: quantity.max: %w", err)
		}
		rules.Quantity.Max = q
	}
	rules.Location.ValidateCoordinates = f.Location.ValidateCoordinates
	rules.Attachments = AttachmentRule{
		Required:      f.Attachments.Required,
		MinCount:      f.Attachments.MinCount,
		RequiredTypes: pstrings.DedupeAndTrim(f.Attachments.RequiredTypes),
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks the rule set is internally consistent and that its
// version is a semantic version.
func (r Rules) Validate() error {
	var errs []error
	if _, err := semver.StrictNewVersion(r.Version); err != nil {
		errs = append(errs, fmt.Errorf("rules version %q is not a semantic version: %w", r.Version, err))
	}
	if r.Quantity.Min.Present() && r.Quantity.Max.Present() && r.Quantity.Min.Cmp(r.Quantity.Max) > 0 {
		errs = append(errs, fmt.Errorf("rules quantity min %s exceeds max %s", r.Quantity.Min, r.Quantity.Max))
	}
	if r.Attachments.MinCount < 0 {
		errs = append(errs, errors.New("rules attachments min_count must not be negative"))
	}
	return errors.Join(errs...)
}
