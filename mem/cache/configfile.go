package cache

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the layout of a YAML file that lists cache configurations.
type ConfigFile struct {
	Configs []Config `yaml:"configs"`
}

// LoadConfigFile reads and validates the configurations listed in a YAML
// file.
func LoadConfigFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache config file: %w", err)
	}

	return DecodeConfigs(bytes.NewReader(data))
}

// DecodeConfigs parses a YAML configuration list. Unknown fields are
// rejected so that typos do not silently fall back to defaults.
func DecodeConfigs(r io.Reader) ([]Config, error) {
	var file ConfigFile

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse cache config file: %w", err)
	}

	if len(file.Configs) == 0 {
		return nil, fmt.Errorf("cache config file lists no configurations")
	}

	for i := range file.Configs {
		c := &file.Configs[i]
		if c.Name == "" {
			c.Name = c.defaultName()
		}

		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("config %d (%s): %w", i, c.Name, err)
		}
	}

	return file.Configs, nil
}

func (c Config) defaultName() string {
	switch c.Type {
	case DirectMapped:
		return DirectMappedConfig(c.TotalSize, c.LineSize).Name
	case SetAssociative:
		return SetAssociativeConfig(c.TotalSize, c.LineSize, c.Ways, c.Policy).Name
	default:
		return FullyAssociativeConfig(c.TotalSize, c.LineSize, c.Policy).Name
	}
}
