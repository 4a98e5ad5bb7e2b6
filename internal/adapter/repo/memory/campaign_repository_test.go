package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsvc/internal/domain"
)

func newCampaign(id, owner string, created time.Time) *domain.Campaign {
	return &domain.Campaign{
		ID:          id,
		OwnerID:     owner,
		Status:      domain.CampaignStatusDraft,
		Metadata:    map[string]any{"productName": "X"},
		SceneAssets: map[int]domain.AssetRef{},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestConcurrentSceneMergesDoNotLoseUpdates(t *testing.T) {
	repo := NewCampaignRepository()
	ctx := context.Background()
	_, err := repo.Insert(ctx, newCampaign("c1", "u1", time.Now()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ref := domain.AssetRef{URL: fmt.Sprintf("u%d", idx), StorageKey: fmt.Sprintf("k%d", idx)}
			assert.NoError(t, repo.MergeSceneAssets(ctx, "c1", map[int]domain.AssetRef{idx: ref}, time.Now()))
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got.SceneAssets, 32)
}

func TestReturnedCampaignsAreCopies(t *testing.T) {
	repo := NewCampaignRepository()
	ctx := context.Background()
	created, err := repo.Insert(ctx, newCampaign("c1", "u1", time.Now()))
	require.NoError(t, err)

	created.SceneAssets[0] = domain.AssetRef{URL: "leak"}
	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, got.SceneAssets)
}

func TestInsertHonorsIdempotencyKeyPerOwner(t *testing.T) {
	repo := NewCampaignRepository()
	ctx := context.Background()

	first := newCampaign("c1", "u1", time.Now())
	first.IdempotencyKey = "req-1"
	_, err := repo.Insert(ctx, first)
	require.NoError(t, err)

	retry := newCampaign("c2", "u1", time.Now())
	retry.IdempotencyKey = "req-1"
	got, err := repo.Insert(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	other := newCampaign("c3", "u2", time.Now())
	other.IdempotencyKey = "req-1"
	got, err = repo.Insert(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "c3", got.ID)
}

func TestListByOwnerOrdersByRecency(t *testing.T) {
	repo := NewCampaignRepository()
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c := newCampaign(fmt.Sprintf("c%d", i), "u1", base.Add(time.Duration(i)*time.Hour))
		if i%2 == 1 {
			c.Status = domain.CampaignStatusReady
		}
		_, err := repo.Insert(ctx, c)
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, newCampaign("other", "u2", base))
	require.NoError(t, err)

	all, err := repo.ListByOwner(ctx, "u1", "", 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c4", "c3", "c2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	ready, err := repo.ListByOwner(ctx, "u1", domain.CampaignStatusReady, 10)
	require.NoError(t, err)
	require.Len(t, ready, 2)
	assert.Equal(t, "c3", ready[0].ID)
}

func TestMutationsOnMissingCampaign(t *testing.T) {
	repo := NewCampaignRepository()
	ctx := context.Background()
	require.ErrorIs(t, repo.MergeSceneAssets(ctx, "nope", map[int]domain.AssetRef{0: {}}, time.Now()), domain.ErrCampaignNotFound)
	require.ErrorIs(t, repo.SetVideo(ctx, "nope", domain.AssetRef{}, time.Now()), domain.ErrCampaignNotFound)
	_, err := repo.Get(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrCampaignNotFound)
}
