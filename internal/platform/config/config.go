package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "WHISPER"

// Storage backends for messages and identities.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Feed backends for live inbox fan-out.
const (
	FeedHub      = "hub"
	FeedRedis    = "redis"
	FeedPostgres = "postgres"
)

// Provenance lookup modes.
const (
	ProvenanceRequest = "request"
	ProvenanceRemote  = "remote"
	ProvenanceChain   = "chain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string `envconfig:"ADDR" default:":8080"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	PublicOrigin string `envconfig:"PUBLIC_ORIGIN" default:"http://localhost:8080"`

	StoreBackend  string `envconfig:"STORE_BACKEND" default:"memory"`
	FeedBackend   string `envconfig:"FEED_BACKEND" default:"hub"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	BadgerPath    string `envconfig:"BADGER_PATH" default:"./data/messages"`
	UsersSeedFile string `envconfig:"USERS_SEED_FILE"`

	Redis      RedisConfig      `envconfig:"REDIS"`
	Audit      AuditConfig      `envconfig:"AUDIT"`
	Auth       AuthConfig       `envconfig:"AUTH"`
	Relay      RelayConfig      `envconfig:"RELAY"`
	Provenance ProvenanceConfig `envconfig:"PROVENANCE"`
	Inbox      InboxConfig      `envconfig:"INBOX"`
}

// RedisConfig configures the go-redis client used by the redis feed.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// AuditConfig selects where audit events go. Empty brokers keep events in memory.
type AuditConfig struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"whisper.audit"`
}

type AuthConfig struct {
	JWTSigningKey      string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer          string        `envconfig:"JWT_ISSUER" default:"whisper"`
	JWTAudience        string        `envconfig:"JWT_AUDIENCE" default:"whisper"`
	OperatorSecretHash string        `envconfig:"OPERATOR_SECRET_HASH"`
	CapabilityTTL      time.Duration `envconfig:"CAPABILITY_TTL" default:"15m"`
}

// RelayConfig bounds message submission. Zero MaxMessageLength disables the cap.
type RelayConfig struct {
	MaxMessageLength int `envconfig:"MAX_MESSAGE_LENGTH" default:"0"`
}

type ProvenanceConfig struct {
	Mode      string        `envconfig:"MODE" default:"request"`
	RemoteURL string        `envconfig:"REMOTE_URL" default:"https://api.ipify.org?format=json"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"2s"`
}

type InboxConfig struct {
	ResyncInterval time.Duration `envconfig:"RESYNC_INTERVAL" default:"30s"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"10s"`
}

// FromEnv builds a Server config from WHISPER_* environment variables so main
// stays lean. Nested sections are prefixed by their section name, e.g.
// WHISPER_REDIS_URL or WHISPER_PROVENANCE_TIMEOUT.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Server) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: %s_DATABASE_URL is required for the postgres store", envPrefix)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}

	switch c.FeedBackend {
	case FeedHub:
	case FeedRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("config: %s_REDIS_URL is required for the redis feed", envPrefix)
		}
	case FeedPostgres:
		if c.StoreBackend != BackendPostgres {
			return fmt.Errorf("config: the postgres feed requires the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown feed backend %q", c.FeedBackend)
	}

	switch c.Provenance.Mode {
	case ProvenanceRequest, ProvenanceRemote, ProvenanceChain:
	default:
		return fmt.Errorf("config: unknown provenance mode %q", c.Provenance.Mode)
	}

	if c.Relay.MaxMessageLength < 0 {
		return fmt.Errorf("config: max message length must not be negative")
	}
	if !strings.HasPrefix(c.PublicOrigin, "http://") && !strings.HasPrefix(c.PublicOrigin, "https://") {
		return fmt.Errorf("config: public origin %q must be an http(s) URL", c.PublicOrigin)
	}
	return nil
}
