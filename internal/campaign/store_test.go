package campaign_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsvc/internal/adapter/repo/memory"
	"campaignsvc/internal/campaign"
	"campaignsvc/internal/domain"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) (*campaign.Store, *memory.CampaignRepository) {
	t.Helper()
	repo := memory.NewCampaignRepository()
	clock := &fixedClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	seq := 0
	store := campaign.NewStore(repo,
		campaign.WithClock(clock.Now),
		campaign.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("cmp-%d", seq)
		}),
	)
	return store, repo
}

func TestCreateCampaign(t *testing.T) {
	store, _ := newStore(t)
	c, err := store.CreateCampaign(context.Background(), campaign.CreateInput{
		OwnerID:  "user-1",
		Metadata: map[string]any{"productName": "Kopi Susu", "tone": "playful"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", c.ID)
	assert.Equal(t, "user-1", c.OwnerID)
	assert.Equal(t, domain.CampaignStatusDraft, c.Status)
	assert.Empty(t, c.SceneAssets)
	assert.Nil(t, c.Video)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
}

func TestCreateCampaignValidation(t *testing.T) {
	tests := []struct {
		name string
		in   campaign.CreateInput
	}{
		{name: "missing owner", in: campaign.CreateInput{Metadata: map[string]any{"productName": "X"}}},
		{name: "nil metadata", in: campaign.CreateInput{OwnerID: "u1"}},
		{name: "missing product name", in: campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"tone": "calm"}}},
		{name: "empty product name", in: campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"productName": ""}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newStore(t)
			_, err := store.CreateCampaign(context.Background(), tc.in)
			require.ErrorIs(t, err, domain.ErrInvalidCampaignInput)
		})
	}
}

func TestCreateCampaignIdempotencyKey(t *testing.T) {
	store, _ := newStore(t)
	in := campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"productName": "X"}, IdempotencyKey: "retry-me"}

	first, err := store.CreateCampaign(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	second, err := store.CreateCampaign(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Replayed)

	list, err := store.GetCampaignsForOwner(context.Background(), "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAttachSceneAssetsMergesPerIndex(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	c, err := store.CreateCampaign(ctx, campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"productName": "X"}})
	require.NoError(t, err)

	require.NoError(t, store.AttachSceneAssets(ctx, c.ID, []domain.SceneAssetInput{
		{SceneNumber: 0, ImageURL: "https://b/0a", ImageKey: "k0a"},
		{SceneNumber: 2, ImageURL: "https://b/2", ImageKey: "k2"},
	}))
	require.NoError(t, store.AttachSceneAssets(ctx, c.ID, []domain.SceneAssetInput{
		{SceneNumber: 0, ImageURL: "https://b/0b", ImageKey: "k0b"},
	}))

	got, err := store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]domain.AssetRef{
		0: {URL: "https://b/0b", StorageKey: "k0b"},
		2: {URL: "https://b/2", StorageKey: "k2"},
	}, got.SceneAssets)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestAttachVideo(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	c, err := store.CreateCampaign(ctx, campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"productName": "X"}})
	require.NoError(t, err)

	require.NoError(t, store.AttachVideo(ctx, c.ID, "https://b/v1", "v1"))
	require.NoError(t, store.AttachVideo(ctx, c.ID, "https://b/v2", "v2"))
	got, err := store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Video)
	assert.Equal(t, "v2", got.Video.StorageKey)
}

func TestAttachToUnknownCampaign(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	err := store.AttachSceneAssets(ctx, "missing", []domain.SceneAssetInput{{SceneNumber: 0, ImageURL: "u", ImageKey: "k"}})
	require.ErrorIs(t, err, domain.ErrCampaignNotFound)
	require.ErrorIs(t, store.AttachVideo(ctx, "missing", "u", "k"), domain.ErrCampaignNotFound)
}

func TestGetCampaignsForOwnerLimits(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	for i := 0; i < campaign.DefaultListLimit+5; i++ {
		_, err := store.CreateCampaign(ctx, campaign.CreateInput{OwnerID: "u1", Metadata: map[string]any{"productName": "X"}})
		require.NoError(t, err)
	}
	list, err := store.GetCampaignsForOwner(ctx, "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, list, campaign.DefaultListLimit)
	assert.Equal(t, fmt.Sprintf("cmp-%d", campaign.DefaultListLimit+5), list[0].ID)

	_, err = store.GetCampaignsForOwner(ctx, "u1", "archived", 10)
	require.ErrorIs(t, err, domain.ErrInvalidCampaignInput)
}
