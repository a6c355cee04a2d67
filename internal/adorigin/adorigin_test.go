package adorigin

import (
	"errors"
	"testing"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

type fakeSource struct {
	attr *models.AdAttribution
	err  error
}

func (f *fakeSource) GetAdAttribution(string) (*models.AdAttribution, error) {
	return f.attr, f.err
}

func TestResolveAdOrigin(t *testing.T) {
	now := time.Now()
	r := NewResolver(&fakeSource{attr: &models.AdAttribution{
		Platform:    "meta",
		ProductID:   "77",
		ProductName: "Barbie Dreamhouse",
		ReceivedAt:  now.Add(-time.Hour),
	}})
	r.now = func() time.Time { return now }

	got := r.Resolve("user1", "hola")
	if got.Origin != models.OriginAd {
		t.Fatalf("Origin = %s, want %s", got.Origin, models.OriginAd)
	}
	if got.ProductID != "77" || got.ProductName != "Barbie Dreamhouse" || got.Platform != "meta" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestResolveNoAttributionIsGeneral(t *testing.T) {
	r := NewResolver(&fakeSource{})
	got := r.Resolve("user1", "hola")
	if got.Origin != models.OriginGeneral {
		t.Errorf("Origin = %s, want %s", got.Origin, models.OriginGeneral)
	}
	if got.ProductID != "" {
		t.Errorf("unexpected product payload %+v", got)
	}
}

func TestResolveTrackingTokenWithoutAttribution(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.Origin
	}{
		{"facebook token", "hola, vengo del anuncio fb_ad", models.OriginAd},
		{"instagram token", "IG_AD producto dino", models.OriginAd},
		{"plain greeting", "hola buenas", models.OriginGeneral},
	}
	r := NewResolver(&fakeSource{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve("user1", tt.body)
			if got.Origin != tt.want {
				t.Errorf("Origin = %s, want %s", got.Origin, tt.want)
			}
			if tt.want == models.OriginAd {
				if got.Platform != "unknown" {
					t.Errorf("Platform = %q, want unknown", got.Platform)
				}
				if got.ProductID != "" || got.ProductName != "" {
					t.Errorf("token fallback carries no product payload, got %+v", got)
				}
			}
		})
	}
}

func TestResolveExpiredAttributionIsGeneral(t *testing.T) {
	now := time.Now()
	r := NewResolver(&fakeSource{attr: &models.AdAttribution{
		Platform:   "meta",
		ReceivedAt: now.Add(-AttributionTTL - time.Minute),
	}})
	r.now = func() time.Time { return now }

	if got := r.Resolve("user1", "hola"); got.Origin != models.OriginGeneral {
		t.Errorf("Origin = %s, want %s", got.Origin, models.OriginGeneral)
	}
}

func TestResolveStoreErrorDegradesToGeneral(t *testing.T) {
	r := NewResolver(&fakeSource{err: errors.New("store down")})
	if got := r.Resolve("user1", "hola"); got.Origin != models.OriginGeneral {
		t.Errorf("Origin = %s, want %s", got.Origin, models.OriginGeneral)
	}
}
