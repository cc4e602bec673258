package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Issuer is the iss claim stamped into every token.
	Issuer string `env:"AUTH_ISSUER" envDefault:"clubauth"`

	// PublicBaseURL prefixes the links embedded in outgoing mail.
	PublicBaseURL string `env:"AUTH_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// KeyDir holds the signing and sealing key files. In dev mode missing
	// keys are generated on first start; otherwise they must exist.
	KeyDir       string `env:"AUTH_KEY_DIR" envDefault:"keys"`
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PepperFile   string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// AuditBuffer sizes the async audit queue. Writes beyond it are
	// dropped and counted rather than blocking request handling.
	AuditBuffer int `env:"AUDIT_BUFFER" envDefault:"256"`
}

// DevMode reports whether the service runs with relaxed key handling.
func (c Config) DevMode() bool {
	return c.Env == "dev"
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
