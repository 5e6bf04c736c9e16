package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/repo/memory"
	repopg "github.com/tendant/page-modules/pkg/pagemodules/repo/postgres"
	fssnapshot "github.com/tendant/page-modules/pkg/pagemodules/snapshot/fs"
	memorysnapshot "github.com/tendant/page-modules/pkg/pagemodules/snapshot/memory"
	s3snapshot "github.com/tendant/page-modules/pkg/pagemodules/snapshot/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "page_modules",
		ContentTable:       repopg.DefaultContentTable,
		WriteTimeout:       pagemodules.DefaultWriteTimeout,
		Snapshot:           SnapshotConfig{Type: "none", Config: map[string]interface{}{}},
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the page-modules service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: page_modules)
	ContentTable string // Table consulted for content existence

	// Reorder batch options
	WriteTimeout time.Duration

	// Published tree snapshots
	Snapshot SnapshotConfig

	// Server options
	EnableEventLogging bool
	APIKeySHA256       string // empty disables API key auth
	SeedDemoData       bool
}

// SnapshotConfig represents configuration for the snapshot store
type SnapshotConfig struct {
	Type   string // "none", "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.WriteTimeout <= 0 {
		return errors.New("write_timeout must be positive")
	}

	switch c.Snapshot.Type {
	case "none", "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported snapshot store type: %s", c.Snapshot.Type)
	}

	return nil
}

// Runtime holds everything BuildService wired together
type Runtime struct {
	Service    pagemodules.Service
	Repository pagemodules.Repository
	Snapshots  pagemodules.SnapshotStore // nil when publishing is disabled

	closers []func()
}

// Close releases the database pool, if any
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildService creates the repository, snapshot store, event sink and
// Service described by the configuration.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo
	if closeRepo != nil {
		rt.closers = append(rt.closers, closeRepo)
	}

	options := []pagemodules.Option{
		pagemodules.WithRepository(repo),
		pagemodules.WithLogger(logger),
		pagemodules.WithWriteTimeout(c.WriteTimeout),
	}

	store, err := c.buildSnapshotStore()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build snapshot store: %w", err)
	}
	if store != nil {
		rt.Snapshots = store
		options = append(options, pagemodules.WithSnapshotStore(store))
	}

	if c.EnableEventLogging {
		options = append(options, pagemodules.WithEventSink(pagemodules.NewLoggingEventSink(logger)))
	}

	svc, err := pagemodules.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (pagemodules.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool, repopg.WithContentTable(c.ContentTable))
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		ident := pgx.Identifier{schema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+ident)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
func PingPostgres(databaseURL, schema string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildSnapshotStore creates a SnapshotStore based on the configuration.
// It returns nil when publishing is disabled.
func (c *ServerConfig) buildSnapshotStore() (pagemodules.SnapshotStore, error) {
	cfg := c.Snapshot.Config
	switch c.Snapshot.Type {
	case "none", "":
		return nil, nil

	case "memory":
		return memorysnapshot.New(), nil

	case "fs":
		return fssnapshot.New(fssnapshot.Config{
			BaseDir: getString(cfg, "base_dir", "./data/snapshots"),
		})

	case "s3":
		return s3snapshot.New(s3snapshot.Config{
			Region:                 getString(cfg, "region", "us-east-1"),
			Bucket:                 getString(cfg, "bucket", ""),
			Prefix:                 getString(cfg, "prefix", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Endpoint:               getString(cfg, "endpoint", ""),
			UsePathStyle:           getBool(cfg, "use_path_style", false),
			EnableSSE:              getBool(cfg, "enable_sse", false),
			SSEAlgorithm:           getString(cfg, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(cfg, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", c.Snapshot.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
