package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NodeID   string `yaml:"node_id"`
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	DataDir  string `yaml:"data_dir"`
	DataFile string `yaml:"data_file"`
	LogLevel string `yaml:"log_level"`

	RaftAddr   string `yaml:"raft_addr"`
	RaftData   string `yaml:"raft_data"`
	RaftLeader bool   `yaml:"raft_leader"`
	JoinAddr   string `yaml:"join_addr"`
}

// LoadConfig loads configuration from a YAML file if path is provided,
// otherwise it falls back to environment variables. Environment variables
// always override file values.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// ValidateRaft checks the fields a replicated node cannot run without.
func (c *Config) ValidateRaft() error {
	if c.NodeID == "" {
		return fmt.Errorf("ROLLBOOK_NODE_ID is required (set via environment or config file)")
	}
	if c.RaftAddr == "" {
		return fmt.Errorf("ROLLBOOK_RAFT_ADDR is required (set via environment or config file)")
	}
	if c.RaftLeader && c.JoinAddr != "" {
		return fmt.Errorf("raft_leader and join_addr are mutually exclusive")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./rollbook"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RaftData == "" && cfg.NodeID != "" {
		cfg.RaftData = fmt.Sprintf("./rollbook/raft/%s", cfg.NodeID)
	}
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ROLLBOOK_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("ROLLBOOK_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ROLLBOOK_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("ROLLBOOK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROLLBOOK_DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("ROLLBOOK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROLLBOOK_RAFT_ADDR"); v != "" {
		cfg.RaftAddr = v
	}
	if v := os.Getenv("ROLLBOOK_RAFT_DATA"); v != "" {
		cfg.RaftData = v
	}
	if v := os.Getenv("ROLLBOOK_JOIN_ADDR"); v != "" {
		cfg.JoinAddr = v
	}
	if v := os.Getenv("ROLLBOOK_RAFT_LEADER"); v != "" {
		leader, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ROLLBOOK_RAFT_LEADER value: %w", err)
		}
		cfg.RaftLeader = leader
	}
	return nil
}
