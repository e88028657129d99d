package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs from the environment so main
// stays lean. Defaults suit local development; production overrides via env.
type Config struct {
	Addr string `env:"FOODLINK_ADDR" envDefault:":8080"`

	PostgresDSN string `env:"DATABASE_URL"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	Kafka KafkaConfig `envPrefix:"KAFKA_"`

	// JWTSigningKey signs checkin-session payloads and validates bearer
	// tokens. Must be overridden in production.
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-change-in-production"`

	// TokenTTL bounds how long an issued identity token stays valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"5m"`

	// NoShowThreshold is the count at which attendance escalation fires.
	NoShowThreshold int `env:"NO_SHOW_THRESHOLD" envDefault:"3"`

	// AllocationMaxAttempts bounds participant-number retry on collisions
	// before the registry reports allocation exhaustion.
	AllocationMaxAttempts int `env:"ALLOCATION_MAX_ATTEMPTS" envDefault:"10"`

	// DefaultLocationPrefix is used when an approval carries no prefix.
	DefaultLocationPrefix string `env:"LOCATION_PREFIX" envDefault:"FL"`
}

// RedisConfig configures the optional Redis identity-token store.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the optional activity-event sink.
type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"foodlink.activity"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
