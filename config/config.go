// Package config implements the viper-bindable configuration structs
// for a nodal server and channel, in the style of the retrieved
// corpus's own viper-backed config packages (defaults set once, then a
// config file/env layer merged on top).
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ServerConfig configures a package server Server.
type ServerConfig struct {
	Addr                  string        `mapstructure:"addr"`
	TLSCertFile           string        `mapstructure:"tls_cert_file"`
	TLSKeyFile            string        `mapstructure:"tls_key_file"`
	MaxReceiveMessageSize int           `mapstructure:"max_receive_message_size"`
	DrainTimeout          time.Duration `mapstructure:"drain_timeout"`
}

// ChannelConfig configures a package channel Channel.
type ChannelConfig struct {
	Target                string        `mapstructure:"target"`
	Balancer              string        `mapstructure:"balancer"`
	Insecure              bool          `mapstructure:"insecure"`
	RefreshInterval       time.Duration `mapstructure:"refresh_interval"`
	MaxReceiveMessageSize int           `mapstructure:"max_receive_message_size"`
	SyncStart             bool          `mapstructure:"sync_start"`
}

// Config is the top-level file this package binds, matching a single
// nodal service process that runs both a server and, optionally,
// outbound channels to other services.
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Channels map[string]ChannelConfig `mapstructure:"channels"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8443")
	v.SetDefault("server.max_receive_message_size", 4<<20)
	v.SetDefault("server.drain_timeout", 30*time.Second)
}

// Load builds a Config from the given file path (if non-empty), env
// vars prefixed NODAL_, and the defaults above, in viper's usual
// override order (explicit Set > flag > env > config file > default).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("nodal")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}
