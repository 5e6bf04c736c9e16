package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithContentTable sets the table consulted for content existence
func WithContentTable(table string) Option {
	return func(c *ServerConfig) error {
		if table == "" {
			return fmt.Errorf("content table cannot be empty")
		}
		c.ContentTable = table
		return nil
	}
}

// WithWriteTimeout bounds every persistence write of a reorder batch
func WithWriteTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("write timeout must be positive, got: %s", d)
		}
		c.WriteTimeout = d
		return nil
	}
}

// WithoutSnapshots disables publishing
func WithoutSnapshots() Option {
	return func(c *ServerConfig) error {
		c.Snapshot = SnapshotConfig{Type: "none", Config: map[string]interface{}{}}
		return nil
	}
}

// WithMemorySnapshots keeps published trees in process memory
func WithMemorySnapshots() Option {
	return func(c *ServerConfig) error {
		c.Snapshot = SnapshotConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemSnapshots writes published trees under baseDir
func WithFilesystemSnapshots(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Snapshot = SnapshotConfig{
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Snapshots writes published trees to an S3 bucket.
// If region is empty, defaults to "us-east-1"
func WithS3Snapshots(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Snapshot = SnapshotConfig{
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		return nil
	}
}

// WithS3Credentials sets static credentials on the S3 snapshot store.
// Must be applied after WithS3Snapshots.
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		cfg, err := s3SnapshotConfig(c)
		if err != nil {
			return err
		}
		if accessKeyID != "" {
			cfg["access_key_id"] = accessKeyID
		}
		if secretAccessKey != "" {
			cfg["secret_access_key"] = secretAccessKey
		}
		return nil
	}
}

// WithS3Endpoint points the S3 snapshot store at a custom endpoint (MinIO, localstack).
// Must be applied after WithS3Snapshots.
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		cfg, err := s3SnapshotConfig(c)
		if err != nil {
			return err
		}
		if endpoint == "" {
			return fmt.Errorf("S3 endpoint cannot be empty")
		}
		cfg["endpoint"] = endpoint
		cfg["use_path_style"] = usePathStyle
		return nil
	}
}

// WithS3Prefix sets the key prefix of published trees.
// Must be applied after WithS3Snapshots.
func WithS3Prefix(prefix string) Option {
	return func(c *ServerConfig) error {
		cfg, err := s3SnapshotConfig(c)
		if err != nil {
			return err
		}
		cfg["prefix"] = prefix
		return nil
	}
}

// WithEventLogging toggles logging of every domain event
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithAPIKeySHA256 enables API key auth on /api/v1. Empty disables it.
func WithAPIKeySHA256(sum string) Option {
	return func(c *ServerConfig) error {
		c.APIKeySHA256 = sum
		return nil
	}
}

// WithDemoData seeds demo module types and content on startup
func WithDemoData(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.SeedDemoData = enabled
		return nil
	}
}

func s3SnapshotConfig(c *ServerConfig) (map[string]interface{}, error) {
	if c.Snapshot.Type != "s3" {
		return nil, fmt.Errorf("S3 snapshot store not configured; apply WithS3Snapshots first")
	}
	if c.Snapshot.Config == nil {
		c.Snapshot.Config = map[string]interface{}{}
	}
	return c.Snapshot.Config, nil
}
