package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBUser     string `envconfig:"DB_USER" default:"voipgate"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"voipgate"`
	DBName     string `envconfig:"DB_NAME" default:"voipgate"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Optional; login/register rate limiting is skipped when empty.
	RedisURL string `envconfig:"REDIS_URL"`

	VoipmsAPIURL   string        `envconfig:"VOIPMS_API_URL" default:"https://voip.ms/api/v1/rest.php"`
	VoipmsUsername string        `envconfig:"VOIPMS_API_USERNAME"`
	VoipmsPassword string        `envconfig:"VOIPMS_API_PASSWORD"`
	APITimeout     time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=disable"
}
