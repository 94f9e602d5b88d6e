// Package config holds the runtime settings of the storefront and the
// command-line flags that populate them.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
)

// Cart storage backends.
const (
	CartBackendMemory = "memory"
	CartBackendRedis  = "redis"
	CartBackendPebble = "pebble"
)

type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	KafkaBrokers  string
	KafkaTopic    string
	PebbleDir     string
	CartBackend   string
	AdminEmail    string
	Dev           bool
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		KafkaTopic:  "bulls.product-changes",
		PebbleDir:   "./data/carts",
		CartBackend: CartBackendMemory,
	}
}

// Validate checks that the settings fit together.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	switch c.CartBackend {
	case CartBackendMemory:
	case CartBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("cart backend redis needs a redis address")
		}
	case CartBackendPebble:
		if c.PebbleDir == "" {
			return errors.New("cart backend pebble needs a data directory")
		}
	default:
		return fmt.Errorf("unknown cart backend %q", c.CartBackend)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis db %d", c.RedisDB)
	}
	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		return errors.New("kafka brokers set without a topic")
	}
	if c.AdminEmail != "" {
		if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
			return fmt.Errorf("invalid admin email %q: %w", c.AdminEmail, err)
		}
	}
	return nil
}

// Flags returns the command-line flags, each also readable from its
// BULLS_* environment variable.
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "http-addr", Value: d.HTTPAddr, Usage: "HTTP listen address", Sources: cli.EnvVars("BULLS_HTTP_ADDR")},
		&cli.StringFlag{Name: "postgres-dsn", Usage: "Postgres DSN of the document store; empty keeps documents in memory", Sources: cli.EnvVars("BULLS_POSTGRES_DSN")},
		&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for the product cache and carts", Sources: cli.EnvVars("BULLS_REDIS_ADDR")},
		&cli.StringFlag{Name: "redis-password", Sources: cli.EnvVars("BULLS_REDIS_PASSWORD")},
		&cli.StringFlag{Name: "redis-db", Value: "0", Sources: cli.EnvVars("BULLS_REDIS_DB")},
		&cli.StringFlag{Name: "nats-url", Usage: "NATS URL for sharing cart changes between instances", Sources: cli.EnvVars("BULLS_NATS_URL")},
		&cli.StringFlag{Name: "kafka-brokers", Usage: "comma-separated Kafka brokers for the product change log", Sources: cli.EnvVars("BULLS_KAFKA_BROKERS")},
		&cli.StringFlag{Name: "kafka-topic", Value: d.KafkaTopic, Sources: cli.EnvVars("BULLS_KAFKA_TOPIC")},
		&cli.StringFlag{Name: "pebble-dir", Value: d.PebbleDir, Sources: cli.EnvVars("BULLS_PEBBLE_DIR")},
		&cli.StringFlag{Name: "cart-backend", Value: d.CartBackend, Usage: "memory, redis or pebble", Sources: cli.EnvVars("BULLS_CART_BACKEND")},
		&cli.StringFlag{Name: "admin-email", Usage: "email of the store administrator", Sources: cli.EnvVars("BULLS_ADMIN_EMAIL")},
		&cli.BoolFlag{Name: "dev", Usage: "development logging", Sources: cli.EnvVars("BULLS_DEV")},
	}
}

// FromCommand reads the flags declared by Flags.
func FromCommand(cmd *cli.Command) (*Config, error) {
	redisDB, err := strconv.Atoi(strings.TrimSpace(cmd.String("redis-db")))
	if err != nil {
		return nil, fmt.Errorf("invalid redis db: %w", err)
	}

	cfg := &Config{
		HTTPAddr:      cmd.String("http-addr"),
		PostgresDSN:   cmd.String("postgres-dsn"),
		RedisAddr:     cmd.String("redis-addr"),
		RedisPassword: cmd.String("redis-password"),
		RedisDB:       redisDB,
		NATSURL:       cmd.String("nats-url"),
		KafkaBrokers:  cmd.String("kafka-brokers"),
		KafkaTopic:    cmd.String("kafka-topic"),
		PebbleDir:     cmd.String("pebble-dir"),
		CartBackend:   strings.ToLower(strings.TrimSpace(cmd.String("cart-backend"))),
		AdminEmail:    strings.TrimSpace(cmd.String("admin-email")),
		Dev:           cmd.Bool("dev"),
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
