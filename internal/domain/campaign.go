package domain

import (
	"fmt"
	"time"
)

// CampaignStatus enumerates campaign lifecycle states.
type CampaignStatus string

const (
	CampaignStatusDraft      CampaignStatus = "draft"
	CampaignStatusProcessing CampaignStatus = "processing"
	CampaignStatusReady      CampaignStatus = "ready"
	CampaignStatusFailed     CampaignStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusProcessing, CampaignStatusReady, CampaignStatusFailed:
		return true
	}
	return false
}

// ParseCampaignStatus converts a raw filter value into a status. An empty
// value yields an empty status, meaning "no filter".
func ParseCampaignStatus(raw string) (CampaignStatus, error) {
	if raw == "" {
		return "", nil
	}
	s := CampaignStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidCampaignInput, raw)
	}
	return s, nil
}

// AssetRef points at an object that has been durably written to the object store.
type AssetRef struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey"`
}

// Campaign is the aggregate root persisted by the campaign record store.
type Campaign struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"ownerId"`
	Status         CampaignStatus   `json:"status"`
	Metadata       map[string]any   `json:"metadata"`
	SceneAssets    map[int]AssetRef `json:"sceneAssets"`
	Video          *AssetRef        `json:"video,omitempty"`
	IdempotencyKey string           `json:"-"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`

	// Replayed is set when a create call returned a campaign that an earlier
	// call with the same idempotency key already created. Never persisted.
	Replayed bool `json:"-"`
}

// Clone returns a deep copy so callers never share maps with a store.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Metadata = make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		out.Metadata[k] = v
	}
	out.SceneAssets = make(map[int]AssetRef, len(c.SceneAssets))
	for k, v := range c.SceneAssets {
		out.SceneAssets[k] = v
	}
	if c.Video != nil {
		video := *c.Video
		out.Video = &video
	}
	return &out
}

// SceneAssetInput links one uploaded scene image to a scene index.
type SceneAssetInput struct {
	SceneNumber int
	ImageURL    string
	ImageKey    string
}
