package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/ingest"
	"campaignsvc/internal/middleware"
)

// Ingester runs one campaign-creation request.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// CampaignReader serves campaign reads.
type CampaignReader interface {
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
	GetCampaignsForOwner(ctx context.Context, ownerID string, status domain.CampaignStatus, limit int) ([]domain.Campaign, error)
}

type App struct {
	Ingest    Ingester
	Campaigns CampaignReader
	Logger    zerolog.Logger
	// MaxUploadBytes caps a whole create request body.
	MaxUploadBytes int64
	// Ready reports backing store health for the health endpoint; nil means always ready.
	Ready func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// logger returns the request-scoped logger when the logging middleware set one.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
