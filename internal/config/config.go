// Package config loads the service configuration from YAML, defaults and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	olimage "ortholabel/internal/image"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Segment   SegmentConfig   `yaml:"segment"`
	Vectorize VectorizeConfig `yaml:"vectorize"`
	Labels    LabelsConfig    `yaml:"labels"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	LabelWorkers int    `yaml:"label_workers"`
}

// StorageConfig locates the data directory.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// SegmentConfig holds segmentation defaults.
type SegmentConfig struct {
	NSegments   int     `yaml:"n_segments"`
	Compactness float64 `yaml:"compactness"`
	MaxDim      int     `yaml:"max_dim"`
	Iterations  int     `yaml:"iterations"`
}

// VectorizeConfig holds polygon simplification settings.
type VectorizeConfig struct {
	EpsilonFactor    float64 `yaml:"epsilon_factor"`
	EpsilonMin       float64 `yaml:"epsilon_min"`
	MinContourPoints int     `yaml:"min_contour_points"`
	Workers          int     `yaml:"workers"`
}

// LabelsConfig holds labeling settings.
type LabelsConfig struct {
	Pad         int    `yaml:"pad"`
	PatchFormat string `yaml:"patch_format"`
	DefaultUser string `yaml:"default_user"`
}

// StoreConfig selects the label document backend. An empty PostgresURL
// selects the file backend.
type StoreConfig struct {
	PostgresURL string `yaml:"postgres_url"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":5000",
			LabelWorkers: 4,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Segment: SegmentConfig{
			NSegments:   800,
			Compactness: 10,
			MaxDim:      3000,
			Iterations:  10,
		},
		Vectorize: VectorizeConfig{
			EpsilonFactor:    0.008,
			EpsilonMin:       1.5,
			MinContourPoints: 4,
			Workers:          0, // NumCPU
		},
		Labels: LabelsConfig{
			Pad:         8,
			PatchFormat: "png",
			DefaultUser: "web_user",
		},
	}
}

// LoadFromFile loads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load returns the defaults, overlaid by filename when non-empty, then by
// the environment, and validates the result.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		var err error
		if cfg, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ORTHOLABEL_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ORTHOLABEL_DATA_DIR"); ok && v != "" {
		c.Storage.DataDir = v
	}
	if v, ok := lookup("ORTHOLABEL_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("ORTHOLABEL_POSTGRES_URL"); ok {
		c.Store.PostgresURL = v
	}
	if v, ok := lookup("ORTHOLABEL_LABEL_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORTHOLABEL_LABEL_WORKERS: %w", err)
		}
		c.Server.LabelWorkers = n
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Server.LabelWorkers < 1 {
		return fmt.Errorf("server.label_workers must be positive")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir cannot be empty")
	}
	if c.Segment.NSegments < 1 {
		return fmt.Errorf("segment.n_segments must be positive")
	}
	if c.Segment.Compactness <= 0 {
		return fmt.Errorf("segment.compactness must be positive")
	}
	if c.Segment.MaxDim < 1 {
		return fmt.Errorf("segment.max_dim must be positive")
	}
	if c.Segment.Iterations < 1 {
		return fmt.Errorf("segment.iterations must be positive")
	}
	if c.Vectorize.EpsilonFactor < 0 || c.Vectorize.EpsilonMin < 0 {
		return fmt.Errorf("vectorize epsilon values cannot be negative")
	}
	if c.Vectorize.MinContourPoints < 1 {
		return fmt.Errorf("vectorize.min_contour_points must be positive")
	}
	if c.Vectorize.Workers < 0 {
		return fmt.Errorf("vectorize.workers cannot be negative")
	}
	if c.Labels.Pad < 0 {
		return fmt.Errorf("labels.pad cannot be negative")
	}
	if _, err := olimage.ParseFormat(c.Labels.PatchFormat); err != nil {
		return fmt.Errorf("labels.patch_format: %w", err)
	}
	return nil
}
