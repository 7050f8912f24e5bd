// Package config holds service configuration and the table-parameter
// contract shared between the catalog and the warehouse side.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// StorageHandlerKey is the table parameter marking a catalog table as
// externally backed. A table is linked iff the parameter value is exactly
// StorageHandlerID; every other table passes through untouched.
const (
	StorageHandlerKey = "storage_handler"
	StorageHandlerID  = "bqbridge"
)

// Table parameters mapping a linked table to its warehouse table.
const (
	ProjectParam = "bq.project"
	DatasetParam = "bq.dataset"
	TableParam   = "bq.table"
)

// Write-method configuration. Exactly two values are recognized; anything
// else is a fatal misconfiguration at commit time.
const (
	WriteMethodKey      = "bq.write.method"
	WriteMethodDirect   = "direct"
	WriteMethodIndirect = "indirect"
)

// Config is the top-level service configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	Database  DatabaseConfig  `yaml:"database"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Scratch   ScratchConfig   `yaml:"scratch"`
	Job       JobConfig       `yaml:"job"`
}

// WarehouseConfig configures the warehouse connection.
type WarehouseConfig struct {
	// Project is the billing project queries run under.
	Project string `yaml:"project"`
}

// DatabaseConfig configures the catalog/job-state database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ScratchConfig configures the per-job working storage.
type ScratchConfig struct {
	// Backend selects the scratch implementation: "local" or "s3".
	Backend  string `yaml:"backend"`
	Root     string `yaml:"root"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// JobConfig configures job finalization.
type JobConfig struct {
	WriteMethod string `yaml:"write_method"`
	WorkDir     string `yaml:"work_dir"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes, applying defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Scratch.Backend == "" {
		c.Scratch.Backend = "local"
	}
	if c.Job.WriteMethod == "" {
		c.Job.WriteMethod = WriteMethodDirect
	}
	if c.Job.WorkDir == "" {
		c.Job.WorkDir = "_bqbridge_work"
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Scratch.Backend {
	case "local":
	case "s3":
		if c.Scratch.Bucket == "" {
			return fmt.Errorf("scratch bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown scratch backend %q", c.Scratch.Backend)
	}
	// Indirect commits hand the staged object URIs to a warehouse load job,
	// which cannot read local filesystem paths.
	if c.Job.WriteMethod == WriteMethodIndirect && c.Scratch.Backend == "local" {
		return fmt.Errorf("the indirect write method requires the s3 scratch backend")
	}
	return nil
}

// TableIDFromParameters resolves the warehouse table a linked catalog table
// points at from its parameter map.
func TableIDFromParameters(params map[string]string) (warehouse.TableID, error) {
	id := warehouse.TableID{
		Project: params[ProjectParam],
		Dataset: params[DatasetParam],
		Table:   params[TableParam],
	}
	if id.Project == "" || id.Dataset == "" || id.Table == "" {
		return warehouse.TableID{}, fmt.Errorf("table parameters %s, %s, and %s are required for linked tables",
			ProjectParam, DatasetParam, TableParam)
	}
	return id, nil
}
