package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Agent configures the cmd/huddle client binary.
type Agent struct {
	SignalURL   string        `mapstructure:"signal_url" validate:"required,url"`
	Room        string        `mapstructure:"room" validate:"required"`
	DisplayName string        `mapstructure:"display_name" validate:"required,max=36"`
	STUNServers []string      `mapstructure:"stun_servers"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	Backoff     time.Duration `mapstructure:"backoff" validate:"min=0"`
}

// Relay configures the cmd/signald relay binary.
type Relay struct {
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Secret       string        `mapstructure:"secret"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	JoinLimit    int           `mapstructure:"join_limit" validate:"min=1"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
}

type Config struct {
	Agent Agent `mapstructure:"agent"`
	Relay Relay `mapstructure:"relay"`
}

// Load reads config/config.<env>.yaml (CONFIG_ENV, default dev), applies
// defaults, and validates the result. A missing file is not an error;
// defaults carry a local setup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.signal_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("agent.room", "lobby")
	v.SetDefault("agent.display_name", "guest")
	v.SetDefault("agent.ping_period", "54s")
	v.SetDefault("agent.read_limit", 32768)
	v.SetDefault("agent.backoff", "3s")

	v.SetDefault("relay.mode", "release")
	v.SetDefault("relay.port", 8080)
	v.SetDefault("relay.read_limit", 32768)
	v.SetDefault("relay.ping_period", "54s")
	v.SetDefault("relay.join_limit", 10)
	v.SetDefault("relay.join_interval", "1m")
}
