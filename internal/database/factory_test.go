package database

import (
	"errors"
	"testing"

	"photosync/internal/config"
)

var errTest = errors.New("test error")

func TestNewHistoryFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(t *testing.T) config.DatabaseConfig
		wantErr bool
	}{
		{
			name: "memory database",
			cfg:  func(t *testing.T) config.DatabaseConfig { return config.DatabaseConfig{Type: "memory"} },
		},
		{
			name: "sqlite database",
			cfg: func(t *testing.T) config.DatabaseConfig {
				return config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}
			},
		},
		{
			name:    "sqlite database without data_dir",
			cfg:     func(t *testing.T) config.DatabaseConfig { return config.DatabaseConfig{Type: "sqlite"} },
			wantErr: true,
		},
		{
			name:    "unknown database type",
			cfg:     func(t *testing.T) config.DatabaseConfig { return config.DatabaseConfig{Type: "postgres"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewHistoryFromConfig(tt.cfg(t), "test-device-123")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewHistoryFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewHistoryFromConfig() should return nil on error")
				}
				return
			}
			if got == nil {
				t.Fatal("NewHistoryFromConfig() returned nil")
			}
			got.Close()
		})
	}
}
