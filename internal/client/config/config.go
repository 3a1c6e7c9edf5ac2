// Package config holds the sealbox CLI settings: defaults, then an optional
// JSON file, then short flags.
package config

import "time"

type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	DownloadDir        string
	RequestTimeout     time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DownloadDir = "."
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig builds a Config. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
