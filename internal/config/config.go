package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Golden identifies one reference image of a scenario.
// Name keys the output directory; File locates the reference PNG.
type Golden struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
}

// Dimensions is the pixel size of the candidate and golden images.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Scenario describes one test case.
type Scenario struct {
	Slug       string     `json:"slug" yaml:"slug"`
	Goldens    []Golden   `json:"goldens" yaml:"goldens"`
	Dimensions Dimensions `json:"dimensions" yaml:"dimensions"`
}

// Config is an ordered list of scenarios. A loaded Config is treated as
// immutable for the duration of a run.
type Config []Scenario

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: "failed to read configuration", Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a JSON or YAML document and validates it.
func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Message: "configuration is empty"}
		}
		return nil, &ConfigError{Message: "failed to parse configuration", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes scenario and golden names and checks the
// configuration against the schema and the uniqueness rules.
func (c Config) Validate() error {
	if len(c) == 0 {
		return &ConfigError{Message: "at least one scenario is required"}
	}

	if err := validateSchema(c); err != nil {
		return err
	}

	return validateNames(c)
}

// Scenario returns the scenario with the given slug.
func (c Config) Scenario(slug string) (Scenario, bool) {
	for _, s := range c {
		if s.Slug == slug {
			return s, true
		}
	}
	return Scenario{}, false
}

// JSON returns the compact JSON encoding of the configuration, as echoed
// into config.json next to the results.
func (c Config) JSON() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Hash returns the hex SHA-256 of the JSON encoding.
func (c Config) Hash() (string, error) {
	data, err := c.JSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// PixelCount returns width*height.
func (d Dimensions) PixelCount() int {
	return d.Width * d.Height
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}
