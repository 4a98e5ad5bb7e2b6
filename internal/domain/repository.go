package domain

import (
	"context"
	"time"
)

// CampaignRepository is the document-store driver behind the campaign record
// store. Every mutating method must be a single atomic write.
type CampaignRepository interface {
	// Insert persists a new campaign. When c carries an idempotency key that
	// the owner already used, the existing campaign is returned instead.
	Insert(ctx context.Context, c *Campaign) (*Campaign, error)
	Get(ctx context.Context, id string) (*Campaign, error)
	// MergeSceneAssets overwrites only the given scene indices.
	MergeSceneAssets(ctx context.Context, id string, assets map[int]AssetRef, updatedAt time.Time) error
	SetVideo(ctx context.Context, id string, video AssetRef, updatedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID string, status CampaignStatus, limit int) ([]Campaign, error)
}
