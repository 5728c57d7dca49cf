package catalog

import (
	"fmt"

	"photosync/internal/config"
	"photosync/internal/photosync"
)

// NewCatalogFromConfig creates a Catalog implementation based on the catalog
// config type. apiKey is the resolved key, which may come from the
// environment or an encrypted key file rather than cfg itself.
func NewCatalogFromConfig(cfg config.CatalogConfig, deviceID, apiKey string, logger photosync.Logger) (photosync.Catalog, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCatalog(), nil
	case "immich", "":
		client, err := NewClient(Config{
			BaseURL:        cfg.URL,
			APIKey:         apiKey,
			DeviceID:       deviceID,
			RetryDelay:     cfg.RetryDelay.Duration,
			MaxRetries:     cfg.MaxRetries,
			RequestTimeout: cfg.RequestTimeout.Duration,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
