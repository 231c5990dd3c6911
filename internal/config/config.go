package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Records RecordsConfig `yaml:"records"`
	Layout  LayoutConfig  `yaml:"layout"`
	Render  RenderConfig  `yaml:"render"`
	Zoom    ZoomConfig    `yaml:"zoom"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Neo4jConfig describes the graph store. Property and label names are
// spliced into Cypher text, so they must be plain identifiers.
type Neo4jConfig struct {
	URI              string        `yaml:"uri" validate:"required"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Database         string        `yaml:"database"`
	NodeLabel        string        `yaml:"node_label" validate:"omitempty,cypherident"`
	IDProperty       string        `yaml:"id_property" validate:"required,cypherident"`
	LabelProperty    string        `yaml:"label_property" validate:"required,cypherident"`
	WeightProperty   string        `yaml:"weight_property" validate:"required,cypherident"`
	RowLimit         int           `yaml:"row_limit" validate:"gte=1,lte=100000"`
	IncludeSeedEdges bool          `yaml:"include_seed_edges"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
}

type RecordsConfig struct {
	Path  string `yaml:"path" validate:"required"`
	Table string `yaml:"table" validate:"required,cypherident"`
}

type LayoutConfig struct {
	Algorithm     string  `yaml:"algorithm" validate:"oneof=kamada-kawai eades"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=1"`
	Epsilon       float64 `yaml:"epsilon" validate:"gt=0"`
}

type RenderConfig struct {
	Width      int     `yaml:"width" validate:"gte=100"`
	Height     int     `yaml:"height" validate:"gte=100"`
	NodeRadius float64 `yaml:"node_radius" validate:"gt=0"`
	Padding    float64 `yaml:"padding" validate:"gte=0"`
	FontSize   float64 `yaml:"font_size" validate:"gt=0"`
}

type ZoomConfig struct {
	Initial     float64 `yaml:"initial" validate:"gt=0"`
	ButtonStep  float64 `yaml:"button_step" validate:"gt=0"`
	ButtonFloor float64 `yaml:"button_floor" validate:"gt=0"`
	ScrollStep  float64 `yaml:"scroll_step" validate:"gt=0"`
	ScrollFloor float64 `yaml:"scroll_floor" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Environment variables that override connection settings from the file.
const (
	EnvNeo4jURI      = "PROTGRAPH_NEO4J_URI"
	EnvNeo4jUsername = "PROTGRAPH_NEO4J_USERNAME"
	EnvNeo4jPassword = "PROTGRAPH_NEO4J_PASSWORD"
	EnvNeo4jDatabase = "PROTGRAPH_NEO4J_DATABASE"
	EnvRecordsPath   = "PROTGRAPH_RECORDS_PATH"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Neo4j: Neo4jConfig{
			URI:            "bolt://localhost:7687",
			Username:       "neo4j",
			Database:       "neo4j",
			NodeLabel:      "Protein",
			IDProperty:     "entry",
			LabelProperty:  "name",
			WeightProperty: "weight",
			RowLimit:       500,
			Timeout:        10 * time.Second,
		},
		Records: RecordsConfig{
			Path:  "./records.db",
			Table: "records",
		},
		Layout: LayoutConfig{
			Algorithm:     "kamada-kawai",
			MaxIterations: 500,
			Epsilon:       1e-4,
		},
		Render: RenderConfig{
			Width:      800,
			Height:     600,
			NodeRadius: 10,
			Padding:    40,
			FontSize:   11,
		},
		Zoom: ZoomConfig{
			Initial:     1.0,
			ButtonStep:  0.2,
			ButtonFloor: 0.2,
			ScrollStep:  0.1,
			ScrollFloor: 0.1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads config from a YAML file. A missing file yields the defaults.
// Environment overrides are applied after the file and before validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	// Expand paths
	cfg.Records.Path = expandPath(cfg.Records.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("cypherident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvNeo4jURI, &cfg.Neo4j.URI},
		{EnvNeo4jUsername, &cfg.Neo4j.Username},
		{EnvNeo4jPassword, &cfg.Neo4j.Password},
		{EnvNeo4jDatabase, &cfg.Neo4j.Database},
		{EnvRecordsPath, &cfg.Records.Path},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
