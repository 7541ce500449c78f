package gateway

import (
	"testing"

	"closet-go/internal/closet"
	"closet-go/internal/config"
	"closet-go/internal/testutil"
)

func TestNewGatewayFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.GatewayConfig
		want    string
		wantErr bool
	}{
		{name: "memory", cfg: config.GatewayConfig{Type: "memory"}, want: "memory"},
		{name: "http", cfg: config.GatewayConfig{Type: "http", BaseURL: "http://localhost:8000", TimeoutSeconds: 5, RequestsPerSecond: 2, Burst: 4}, want: "http"},
		{name: "http without url", cfg: config.GatewayConfig{Type: "http"}, wantErr: true},
		{name: "http with bad url", cfg: config.GatewayConfig{Type: "http", BaseURL: "localhost"}, wantErr: true},
		{name: "negative timeout", cfg: config.GatewayConfig{Type: "http", BaseURL: "http://localhost:8000", TimeoutSeconds: -1}, wantErr: true},
		{name: "unknown", cfg: config.GatewayConfig{Type: "grpc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewGatewayFromConfig(tt.cfg, config.UploadConfig{}, testutil.FixedClock(), testutil.NewStubIDGenerator(), closet.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGatewayFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewGatewayFromConfig() should return nil on error")
				}
				return
			}
			switch tt.want {
			case "memory":
				if _, ok := got.(*MemoryGateway); !ok {
					t.Errorf("got %T, want *MemoryGateway", got)
				}
			case "http":
				if _, ok := got.(*HTTPGateway); !ok {
					t.Errorf("got %T, want *HTTPGateway", got)
				}
			}
		})
	}
}
