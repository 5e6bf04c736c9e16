package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the environment surface of ServerConfig.
//
//	DATABASE_URL - "memory" (default) or "postgres(ql)://..."
//	SNAPSHOT_URL - one of:
//	               - "" or "none" - publishing disabled (default)
//	               - "memory://" - in-memory snapshots
//	               - "file:///path/to/snapshots" - filesystem snapshots
//	               - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&prefix=pages&path_style=true"
type envConfig struct {
	Port               string        `env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	Environment        string        `env:"ENVIRONMENT" env-default:"development" env-description:"Runtime environment"`
	DatabaseURL        string        `env:"DATABASE_URL" env-description:"memory or a postgres connection string"`
	DBSchema           string        `env:"DB_SCHEMA" env-description:"Postgres schema for the module tables"`
	ContentTable       string        `env:"CONTENT_TABLE" env-description:"Table checked for content existence"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" env-default:"10s" env-description:"Timeout of each persistence write"`
	SnapshotURL        string        `env:"SNAPSHOT_URL" env-description:"Where published trees are written"`
	EnableEventLogging bool          `env:"ENABLE_EVENT_LOGGING" env-description:"Log every domain event"`
	APIKeySHA256       string        `env:"API_KEY_SHA256" env-description:"SHA-256 of the API key; empty disables auth"`
	SeedDemoData       bool          `env:"SEED_DEMO_DATA" env-description:"Seed demo types and content (memory database only)"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`
}

// WithEnv applies environment variable overrides. Unset variables keep the
// values already in the config.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		e := envConfig{
			Port:               c.Port,
			Environment:        c.Environment,
			DatabaseURL:        c.DatabaseURL,
			DBSchema:           c.DBSchema,
			ContentTable:       c.ContentTable,
			WriteTimeout:       c.WriteTimeout,
			EnableEventLogging: c.EnableEventLogging,
			APIKeySHA256:       c.APIKeySHA256,
			SeedDemoData:       c.SeedDemoData,
		}
		if err := cleanenv.ReadEnv(&e); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		opts := []Option{
			WithPort(e.Port),
			WithEnvironment(e.Environment),
			WithDatabaseSchema(e.DBSchema),
			WithWriteTimeout(e.WriteTimeout),
			WithEventLogging(e.EnableEventLogging),
			WithAPIKeySHA256(e.APIKeySHA256),
			WithDemoData(e.SeedDemoData),
		}
		if e.ContentTable != "" {
			opts = append(opts, WithContentTable(e.ContentTable))
		}
		for _, opt := range opts {
			if err := opt(c); err != nil {
				return err
			}
		}

		if err := applyDatabaseURL(e.DatabaseURL, c); err != nil {
			return err
		}
		return applySnapshotURL(e, c)
	}
}

// EnvHelp describes the environment variables WithEnv reads
func EnvHelp() (string, error) {
	header := "Environment variables:"
	return cleanenv.GetDescription(&envConfig{}, &header)
}

func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		return WithDatabase("memory", "")(c)
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		return WithDatabase("postgres", dbURL)(c)
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
}

func applySnapshotURL(e envConfig, c *ServerConfig) error {
	raw := e.SnapshotURL
	if raw == "" || raw == "none" {
		return WithoutSnapshots()(c)
	}
	if raw == "memory" || raw == "memory://" {
		return WithMemorySnapshots()(c)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid SNAPSHOT_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in SNAPSHOT_URL")
		}
		return WithFilesystemSnapshots(path)(c)

	case "s3":
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in SNAPSHOT_URL")
		}
		q := u.Query()
		region := e.AWSRegion
		if v := q.Get("region"); v != "" {
			region = v
		}
		opts := []Option{WithS3Snapshots(u.Host, region)}

		flags := map[string]bool{}
		for param, key := range map[string]string{
			"path_style":    "use_path_style",
			"create_bucket": "create_bucket_if_not_exist",
			"sse":           "enable_sse",
		} {
			if v := q.Get(param); v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("invalid %s in SNAPSHOT_URL: %w", param, err)
				}
				flags[key] = b
			}
		}

		if v := q.Get("endpoint"); v != "" {
			opts = append(opts, WithS3Endpoint(v, flags["use_path_style"]))
		}
		if v := q.Get("prefix"); v != "" {
			opts = append(opts, WithS3Prefix(v))
		}
		opts = append(opts, WithS3Credentials(e.AWSAccessKeyID, e.AWSSecretAccessKey))
		for _, opt := range opts {
			if err := opt(c); err != nil {
				return err
			}
		}
		for key, b := range flags {
			c.Snapshot.Config[key] = b
		}
		return nil

	default:
		return fmt.Errorf("unsupported SNAPSHOT_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
	}
}
