package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/infra"
	"campaignsvc/internal/sqlinline"
)

// CampaignRepositoryPG implements domain.CampaignRepository on PostgreSQL,
// keeping the aggregate as one row with JSONB documents for metadata and assets.
type CampaignRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCampaignRepository constructs a new campaign repository instance.
func NewCampaignRepository(sql infra.SQLExecutor) *CampaignRepositoryPG {
	return &CampaignRepositoryPG{sql: sql}
}

var _ domain.CampaignRepository = (*CampaignRepositoryPG)(nil)

// EnsureSchema creates the campaigns table and its indexes when missing.
func (r *CampaignRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QEnsureCampaignSchema)
	return err
}

func (r *CampaignRepositoryPG) Insert(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertCampaign, c.ID, c.OwnerID, string(c.Status), metadata, c.IdempotencyKey, c.CreatedAt)
	stored, err := scanCampaign(row)
	if err == nil {
		return stored, nil
	}
	if !infra.IsNoRows(err) || c.IdempotencyKey == "" {
		return nil, err
	}
	// the insert hit the idempotency index; hand back the original record
	return scanCampaign(r.sql.QueryRow(ctx, sqlinline.QSelectCampaignByIdempotencyKey, c.OwnerID, c.IdempotencyKey))
}

func (r *CampaignRepositoryPG) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrCampaignNotFound
	}
	c, err := scanCampaign(r.sql.QueryRow(ctx, sqlinline.QSelectCampaignByID, id))
	if infra.IsNoRows(err) {
		return nil, domain.ErrCampaignNotFound
	}
	return c, err
}

func (r *CampaignRepositoryPG) MergeSceneAssets(ctx context.Context, id string, assets map[int]domain.AssetRef, updatedAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrCampaignNotFound
	}
	patch, err := json.Marshal(encodeSceneAssets(assets))
	if err != nil {
		return fmt.Errorf("encode scene assets: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QMergeCampaignSceneAssets, id, patch, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepositoryPG) SetVideo(ctx context.Context, id string, video domain.AssetRef, updatedAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrCampaignNotFound
	}
	raw, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encode video: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetCampaignVideo, id, raw, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepositoryPG) ListByOwner(ctx context.Context, ownerID string, status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCampaignsByOwner, ownerID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var (
		c                         domain.Campaign
		status                    string
		metadata, scenes, videoJS []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &status, &metadata, &scenes, &videoJS, &c.IdempotencyKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = domain.CampaignStatus(status)
	c.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	sceneAssets, err := decodeSceneAssets(scenes)
	if err != nil {
		return nil, err
	}
	c.SceneAssets = sceneAssets
	if len(videoJS) > 0 && string(videoJS) != "null" {
		var video domain.AssetRef
		if err := json.Unmarshal(videoJS, &video); err != nil {
			return nil, fmt.Errorf("decode video: %w", err)
		}
		c.Video = &video
	}
	return &c, nil
}

func encodeSceneAssets(assets map[int]domain.AssetRef) map[string]domain.AssetRef {
	out := make(map[string]domain.AssetRef, len(assets))
	for idx, ref := range assets {
		out[strconv.Itoa(idx)] = ref
	}
	return out
}

func decodeSceneAssets(raw []byte) (map[int]domain.AssetRef, error) {
	out := map[int]domain.AssetRef{}
	if len(raw) == 0 {
		return out, nil
	}
	var byKey map[string]domain.AssetRef
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("decode scene assets: %w", err)
	}
	for k, ref := range byKey {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode scene assets: bad index %q", k)
		}
		out[idx] = ref
	}
	return out, nil
}
