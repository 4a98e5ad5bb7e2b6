// Package memory holds in-process repository implementations used by tests
// and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"campaignsvc/internal/domain"
)

// CampaignRepository implements domain.CampaignRepository in memory.
type CampaignRepository struct {
	mu          sync.RWMutex
	campaigns   map[string]*domain.Campaign
	idempotency map[string]string
}

func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{
		campaigns:   make(map[string]*domain.Campaign),
		idempotency: make(map[string]string),
	}
}

var _ domain.CampaignRepository = (*CampaignRepository)(nil)

func (r *CampaignRepository) makeKey(ownerID, idempotencyKey string) string {
	return ownerID + "|" + idempotencyKey
}

func (r *CampaignRepository) Insert(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.IdempotencyKey != "" {
		key := r.makeKey(c.OwnerID, c.IdempotencyKey)
		if id, ok := r.idempotency[key]; ok {
			return r.campaigns[id].Clone(), nil
		}
		r.idempotency[key] = c.ID
	}
	r.campaigns[c.ID] = c.Clone()
	return c.Clone(), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return c.Clone(), nil
}

func (r *CampaignRepository) MergeSceneAssets(ctx context.Context, id string, assets map[int]domain.AssetRef, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	if c.SceneAssets == nil {
		c.SceneAssets = make(map[int]domain.AssetRef, len(assets))
	}
	for idx, ref := range assets {
		c.SceneAssets[idx] = ref
	}
	c.UpdatedAt = updatedAt
	return nil
}

func (r *CampaignRepository) SetVideo(ctx context.Context, id string, video domain.AssetRef, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.Video = &video
	c.UpdatedAt = updatedAt
	return nil
}

func (r *CampaignRepository) ListByOwner(ctx context.Context, ownerID string, status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.OwnerID != ownerID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a campaign. It exists so tests can simulate a record that
// vanished between creation and reconciliation.
func (r *CampaignRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.campaigns, id)
}
