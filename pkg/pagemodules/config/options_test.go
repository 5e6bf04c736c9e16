package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9000"),
		WithEnvironment("production"),
		WithDatabase("postgres", "postgres://localhost/pages"),
		WithDatabaseSchema("pages"),
		WithContentTable("documents"),
		WithWriteTimeout(3*time.Second),
		WithEventLogging(false),
		WithAPIKeySHA256("abc"),
		WithDemoData(true),
	)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "postgres://localhost/pages", cfg.DatabaseURL)
	assert.Equal(t, "pages", cfg.DBSchema)
	assert.Equal(t, "documents", cfg.ContentTable)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.EnableEventLogging)
	assert.Equal(t, "abc", cfg.APIKeySHA256)
	assert.True(t, cfg.SeedDemoData)
}

func TestOptionsRejectInvalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"empty environment", WithEnvironment("")},
		{"unknown database", WithDatabase("mysql", "")},
		{"postgres without url", WithDatabase("postgres", "")},
		{"empty content table", WithContentTable("")},
		{"zero write timeout", WithWriteTimeout(0)},
		{"empty snapshot dir", WithFilesystemSnapshots("")},
		{"empty bucket", WithS3Snapshots("", "us-east-1")},
		{"credentials before s3", WithS3Credentials("AKIA", "secret")},
		{"endpoint before s3", WithS3Endpoint("http://localhost:9000", true)},
		{"prefix before s3", WithS3Prefix("pages")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestS3SnapshotOptions(t *testing.T) {
	cfg, err := Load(
		WithS3Snapshots("pages", ""),
		WithS3Endpoint("http://localhost:9000", true),
		WithS3Credentials("AKIA", "secret"),
		WithS3Prefix("published"),
	)
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Snapshot.Type)
	assert.Equal(t, map[string]interface{}{
		"bucket":            "pages",
		"region":            "us-east-1",
		"endpoint":          "http://localhost:9000",
		"use_path_style":    true,
		"access_key_id":     "AKIA",
		"secret_access_key": "secret",
		"prefix":            "published",
	}, cfg.Snapshot.Config)
}

func TestSnapshotOptionsReplaceEachOther(t *testing.T) {
	cfg, err := Load(WithMemorySnapshots(), WithFilesystemSnapshots("/srv/snapshots"))
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Snapshot.Type)
	assert.Equal(t, "/srv/snapshots", cfg.Snapshot.Config["base_dir"])

	cfg, err = Load(WithFilesystemSnapshots("/srv/snapshots"), WithoutSnapshots())
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Snapshot.Type)
}
