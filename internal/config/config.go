package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the CLI application configuration.
type Config struct {
	Evaluator  EvaluatorConfig  `json:"evaluator"`
	Classifier ClassifierConfig `json:"classifier"`
	Output     OutputConfig     `json:"output"`
}

// EvaluatorConfig holds configuration for the evaluation pipeline.
type EvaluatorConfig struct {
	PatchCount int     `json:"patch_count"`
	PatchSize  int     `json:"patch_size"`
	MaskFactor float64 `json:"mask_factor"`
	Mode       string  `json:"mode"`
	Workers    int     `json:"workers"`
}

// ClassifierConfig holds configuration for the inference backend.
type ClassifierConfig struct {
	Backend string `json:"backend"`
	Model   string `json:"model"`
	URL     string `json:"url"`
}

// OutputConfig holds configuration for report and patch-dump output.
type OutputConfig struct {
	ReportPath string `json:"report_path"`
	PatchDir   string `json:"patch_dir"`
	Format     string `json:"format"`
	Quality    int    `json:"quality"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Evaluator: EvaluatorConfig{
			PatchCount: 50,
			PatchSize:  224,
			MaskFactor: 0.7,
			Mode:       "random",
			Workers:    0,
		},
		Classifier: ClassifierConfig{
			Backend: "ollama",
			Model:   "minicpm-v",
			URL:     "http://localhost:11434",
		},
		Output: OutputConfig{
			ReportPath: "",
			PatchDir:   "",
			Format:     "jpg",
			Quality:    90,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Evaluator.PatchCount < 1 {
		return fmt.Errorf("evaluator.patch_count must be positive")
	}
	if c.Evaluator.PatchSize < 1 {
		return fmt.Errorf("evaluator.patch_size must be positive")
	}
	if c.Evaluator.MaskFactor <= 0 || c.Evaluator.MaskFactor > 1 {
		return fmt.Errorf("evaluator.mask_factor must be in (0, 1]")
	}
	if c.Evaluator.Mode != "random" && c.Evaluator.Mode != "uniform" {
		return fmt.Errorf("evaluator.mode must be \"random\" or \"uniform\"")
	}
	if c.Classifier.Backend != "ollama" && c.Classifier.Backend != "llamacpp" {
		return fmt.Errorf("classifier.backend must be \"ollama\" or \"llamacpp\"")
	}
	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier.model cannot be empty")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "blur-detector", "config.json")
}
