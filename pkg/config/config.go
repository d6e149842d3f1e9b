// Package config loads the engine configuration from a YAML file and the
// environment. Environment variables use the TXENGINE prefix, e.g.
// TXENGINE_DEBUG=true or TXENGINE_NODE_ETHEREUM=https://... for a node URL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/spf13/viper"
)

const EnvPrefix = "TXENGINE"

// Config is the engine configuration.
type Config struct {
	Debug       bool                  `mapstructure:"debug"`
	MetricsAddr string                `mapstructure:"metrics_addr"`
	Nodes       map[string]NodeConfig `mapstructure:"nodes"`
	Poll        PollConfig            `mapstructure:"poll"`
	AWS         AWSConfig             `mapstructure:"aws"`
}

// NodeConfig is the node endpoint of one chain.
type NodeConfig struct {
	URL          string `mapstructure:"url"`
	APIKeyHeader string `mapstructure:"api_key_header"`
	APIKey       string `mapstructure:"api_key"`
}

// PollConfig drives the status polling of the send command.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AWSConfig locates a private key held in AWS Secrets Manager.
type AWSConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
	Field      string `mapstructure:"field"`
}

// Load reads the configuration file at path, when path is not empty, and
// applies environment overrides on top of the defaults.
//
// Parameters:
//   - path: The YAML file to read, or "" to use defaults and environment only
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the file cannot be read or a node names an unknown chain
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for _, c := range chain.All() {
		if err := v.BindEnv("nodes."+string(c)+".url", EnvPrefix+"_NODE_"+strings.ToUpper(string(c))); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("poll.timeout", 10*time.Minute)
}

// Validate checks the node names and the poll interval.
func (c *Config) Validate() error {
	for name, node := range c.Nodes {
		if _, err := chain.Parse(name); err != nil {
			return fmt.Errorf("nodes.%s: %w", name, err)
		}
		if node.URL == "" && (node.APIKey != "" || node.APIKeyHeader != "") {
			return fmt.Errorf("nodes.%s: api key set without url", name)
		}
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	return nil
}

// ChainConfigs returns the node configuration of every chain with a URL, in
// chain.All() order.
func (c *Config) ChainConfigs() []*chainManager.ChainConfig {
	var out []*chainManager.ChainConfig
	for _, ch := range chain.All() {
		node, ok := c.Nodes[string(ch)]
		if !ok || node.URL == "" {
			continue
		}
		out = append(out, &chainManager.ChainConfig{
			Chain:        ch,
			RPCUrl:       node.URL,
			APIKeyHeader: node.APIKeyHeader,
			APIKey:       node.APIKey,
		})
	}
	return out
}

// Register adds every configured node to cm.
func (c *Config) Register(cm chainManager.IChainManager) error {
	for _, cc := range c.ChainConfigs() {
		if err := cm.AddChain(cc); err != nil {
			return fmt.Errorf("failed to add chain %s: %w", cc.Chain, err)
		}
	}
	return nil
}
