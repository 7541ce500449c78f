package gateway

import (
	"fmt"
	"time"

	"closet-go/internal/closet"
	"closet-go/internal/config"
)

// Gateway is the item, auth and advisor API, reading its bearer token from a
// CredentialSource set after construction.
type Gateway interface {
	closet.Gateway
	closet.AdvisorGateway
	SetCredentials(src closet.CredentialSource)
}

// NewGatewayFromConfig creates a Gateway implementation based on the gateway config type.
func NewGatewayFromConfig(cfg config.GatewayConfig, upload config.UploadConfig, clock closet.Clock, idgen closet.IDGenerator, logger closet.Logger) (Gateway, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryGateway(clock, idgen, upload.MaxSize), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http gateway requires base_url to be set")
		}
		if cfg.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("timeout_seconds must not be negative: %d", cfg.TimeoutSeconds)
		}
		gw, err := NewHTTPGateway(cfg.BaseURL, idgen, logger, HTTPOptions{
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			MaxUploadSize:     upload.MaxSize,
		})
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown gateway type: %s", cfg.Type)
	}
}
