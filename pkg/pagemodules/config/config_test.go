package config

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/repo/memory"
	memorysnapshot "github.com/tendant/page-modules/pkg/pagemodules/snapshot/memory"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, pagemodules.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, "none", cfg.Snapshot.Type)
	assert.True(t, cfg.EnableEventLogging)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid defaults", func(c *ServerConfig) {}, ""},
		{"missing port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"unknown database", func(c *ServerConfig) { c.DatabaseType = "mysql" }, "database_type"},
		{"postgres without url", func(c *ServerConfig) { c.DatabaseType = "postgres" }, "database_url"},
		{"zero timeout", func(c *ServerConfig) { c.WriteTimeout = 0 }, "write_timeout"},
		{"unknown snapshot store", func(c *ServerConfig) { c.Snapshot.Type = "ftp" }, "snapshot store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadOptionError(t *testing.T) {
	_, err := Load(func(c *ServerConfig) error {
		c.WriteTimeout = -time.Second
		return nil
	})
	assert.Error(t, err)
}

func TestBuildServiceMemory(t *testing.T) {
	cfg, err := Load(WithMemorySnapshots())
	require.NoError(t, err)

	rt, err := cfg.BuildService(context.Background(), nil)
	require.NoError(t, err)
	defer rt.Close()

	repo, ok := rt.Repository.(*memory.Repository)
	require.True(t, ok)
	store, ok := rt.Snapshots.(*memorysnapshot.Store)
	require.True(t, ok)

	contentID := uuid.New()
	repo.RegisterContent(contentID)
	typ := &pagemodules.ModuleType{ID: uuid.New(), Name: "text", DisplayName: "Text", IsActive: true}
	repo.SaveModuleType(typ)

	_, _, err = rt.Service.ApplyInsert(context.Background(), pagemodules.InsertModuleRequest{
		ContentID: contentID, ModuleTypeID: typ.ID,
	})
	require.NoError(t, err)
	assert.Contains(t, store.Keys(), pagemodules.SnapshotKey(contentID))
}

func TestBuildServiceFilesystemSnapshots(t *testing.T) {
	cfg, err := Load(WithFilesystemSnapshots(t.TempDir()))
	require.NoError(t, err)

	rt, err := cfg.BuildService(context.Background(), nil)
	require.NoError(t, err)
	defer rt.Close()
	assert.NotNil(t, rt.Snapshots)
}

func TestBuildServiceWithoutSnapshots(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	rt, err := cfg.BuildService(context.Background(), nil)
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Snapshots)
}

func TestBuildServiceInvalidS3(t *testing.T) {
	cfg, err := Load(func(c *ServerConfig) error {
		c.Snapshot = SnapshotConfig{Type: "s3", Config: map[string]interface{}{
			"bucket":        "snapshots",
			"enable_sse":    true,
			"sse_algorithm": "rot13",
		}}
		return nil
	})
	require.NoError(t, err)

	_, err = cfg.BuildService(context.Background(), nil)
	assert.Error(t, err)
}
