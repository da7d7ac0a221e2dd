package reviews

import (
	"fmt"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
)

// PlatformFactoryConfig configures review platform adapters.
type PlatformFactoryConfig struct {
	GoogleAccessToken string
	GoogleAPIBaseURL  string
	// AllowMockFallback serves seeded mock data for platforms without a
	// configured integration. Development only.
	AllowMockFallback bool
}

// PlatformFactory resolves a platform name to its adapter.
type PlatformFactory struct {
	cfg  PlatformFactoryConfig
	mock *MockAdapter
}

// NewPlatformFactory creates a new platform factory.
func NewPlatformFactory(cfg PlatformFactoryConfig) *PlatformFactory {
	return &PlatformFactory{
		cfg:  cfg,
		mock: NewMockAdapter(),
	}
}

// ForPlatform returns the adapter handling the given platform.
func (f *PlatformFactory) ForPlatform(platform entities.Platform) (providers.ReviewPlatform, error) {
	switch platform {
	case entities.PlatformGoogle:
		if f.cfg.GoogleAccessToken == "" {
			if f.cfg.AllowMockFallback {
				return f.mock, nil
			}
			return nil, fmt.Errorf("google access token not configured")
		}
		return NewGoogleReviewsAdapterWithOptions(f.cfg.GoogleAccessToken, f.cfg.GoogleAPIBaseURL, nil), nil
	case entities.PlatformFacebook, entities.PlatformYelp:
		// No first-party integration yet. These platforms sync through
		// the mock in development and get manual reply handling.
		if f.cfg.AllowMockFallback {
			return f.mock, nil
		}
		return nil, fmt.Errorf("platform %s is not configured", platform)
	default:
		return nil, fmt.Errorf("unknown platform %s", platform)
	}
}

// Mock exposes the shared mock adapter for seeding in development.
func (f *PlatformFactory) Mock() *MockAdapter {
	return f.mock
}
