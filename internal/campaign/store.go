// Package campaign implements the campaign record store: validation, id
// assignment and atomic asset attachment on top of a document repository.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"campaignsvc/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// metadataRules lists the metadata fields a campaign cannot be created without.
var metadataRules = map[string]interface{}{
	"productName": "required",
}

// CreateInput carries the caller-supplied part of a new campaign.
type CreateInput struct {
	OwnerID        string         `validate:"required,max=128"`
	Metadata       map[string]any `validate:"required"`
	IdempotencyKey string         `validate:"omitempty,max=128"`
}

// Store owns persistence of the Campaign aggregate.
type Store struct {
	repo     domain.CampaignRepository
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides campaign id assignment.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore builds a Store on top of repo.
func NewStore(repo domain.CampaignRepository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCampaign validates input and persists a new draft campaign. With an
// idempotency key, repeating the call returns the campaign created first with
// Replayed set.
func (s *Store) CreateCampaign(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCampaignInput, describe(err))
	}
	if errs := s.validate.ValidateMapCtx(ctx, in.Metadata, metadataRules); len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return nil, fmt.Errorf("%w: missing metadata %s", domain.ErrInvalidCampaignInput, strings.Join(fields, ", "))
	}

	now := s.now()
	c := &domain.Campaign{
		ID:             s.newID(),
		OwnerID:        in.OwnerID,
		Status:         domain.CampaignStatusDraft,
		Metadata:       in.Metadata,
		SceneAssets:    map[int]domain.AssetRef{},
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	stored, err := s.repo.Insert(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if stored.ID != c.ID {
		stored.Replayed = true
		s.logger.Info().Str("campaign_id", stored.ID).Str("owner_id", in.OwnerID).Msg("campaign: idempotent create returned existing record")
	}
	return stored, nil
}

// AttachSceneAssets merges the given scene index → asset mappings into the
// campaign in one atomic write. Indices not named are left untouched.
func (s *Store) AttachSceneAssets(ctx context.Context, campaignID string, assets []domain.SceneAssetInput) error {
	if len(assets) == 0 {
		return nil
	}
	merged := make(map[int]domain.AssetRef, len(assets))
	for _, a := range assets {
		if a.SceneNumber < 0 || a.ImageKey == "" || a.ImageURL == "" {
			return fmt.Errorf("%w: incomplete scene asset %d", domain.ErrInvalidCampaignInput, a.SceneNumber)
		}
		merged[a.SceneNumber] = domain.AssetRef{URL: a.ImageURL, StorageKey: a.ImageKey}
	}
	if err := s.repo.MergeSceneAssets(ctx, campaignID, merged, s.now()); err != nil {
		return fmt.Errorf("attach scene assets to %s: %w", campaignID, err)
	}
	return nil
}

// AttachVideo sets the campaign video in one atomic write.
func (s *Store) AttachVideo(ctx context.Context, campaignID, url, key string) error {
	if url == "" || key == "" {
		return fmt.Errorf("%w: incomplete video asset", domain.ErrInvalidCampaignInput)
	}
	if err := s.repo.SetVideo(ctx, campaignID, domain.AssetRef{URL: url, StorageKey: key}, s.now()); err != nil {
		return fmt.Errorf("attach video to %s: %w", campaignID, err)
	}
	return nil
}

// GetCampaign loads one campaign.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	if strings.TrimSpace(campaignID) == "" {
		return nil, domain.ErrCampaignNotFound
	}
	return s.repo.Get(ctx, campaignID)
}

// GetCampaignsForOwner lists an owner's campaigns, newest first.
func (s *Store) GetCampaignsForOwner(ctx context.Context, ownerID string, status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidCampaignInput)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidCampaignInput, status)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListByOwner(ctx, ownerID, status, limit)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
