package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./test.db",
		},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid sqlite config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.Host = "localhost"
				c.Database.User = "harper"
				c.Database.Database = "harper"
			},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name: "postgres missing host",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.User = "harper"
				c.Database.Database = "harper"
			},
			wantErr: "database.host",
		},
		{
			name:    "sqlite missing path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "auth.jwt_secret",
		},
		{
			name: "export enabled without bucket",
			mutate: func(c *Config) {
				c.Export.Enabled = true
			},
			wantErr: "export.bucket",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HARPER_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	require.Equal(t, "WAL", cfg.Database.JournalMode)
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.Metrics.Enabled)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, "test-secret", cfg.Auth.JWTSecret)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARPER_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("HARPER_SERVER_PORT", "9090")
	t.Setenv("HARPER_DATABASE_DRIVER", "postgres")
	t.Setenv("HARPER_DATABASE_HOST", "db.internal")
	t.Setenv("HARPER_DATABASE_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Contains(t, cfg.Database.DSN(), "host=db.internal")
	require.Contains(t, cfg.Database.DSN(), "password=hunter2")
}
