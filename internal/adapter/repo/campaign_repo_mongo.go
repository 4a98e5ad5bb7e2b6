package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campaignsvc/internal/domain"
)

const campaignCollection = "campaigns"

type assetDoc struct {
	URL        string `bson:"url"`
	StorageKey string `bson:"storageKey"`
}

// campaignDoc is the stored shape of a campaign. Scene indices are string keys
// so a single index can be addressed as "sceneAssets.<n>" in an update.
type campaignDoc struct {
	ID             string              `bson:"_id"`
	OwnerID        string              `bson:"ownerId"`
	Status         string              `bson:"status"`
	Metadata       bson.M              `bson:"metadata"`
	SceneAssets    map[string]assetDoc `bson:"sceneAssets"`
	Video          *assetDoc           `bson:"video,omitempty"`
	IdempotencyKey string              `bson:"idempotencyKey,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt"`
}

// CampaignRepositoryMongo implements domain.CampaignRepository on a MongoDB
// collection, one document per campaign.
type CampaignRepositoryMongo struct {
	coll *mongo.Collection
}

// NewCampaignRepositoryMongo binds the repository to the campaigns collection of db.
func NewCampaignRepositoryMongo(db *mongo.Database) *CampaignRepositoryMongo {
	return &CampaignRepositoryMongo{coll: db.Collection(campaignCollection)}
}

var _ domain.CampaignRepository = (*CampaignRepositoryMongo)(nil)

// EnsureIndexes creates the owner listing index and the per-owner idempotency index.
func (r *CampaignRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$exists": true}}),
		},
	})
	return err
}

func (r *CampaignRepositoryMongo) Insert(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	doc := toCampaignDoc(c)
	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return fromCampaignDoc(doc)
	}
	if !mongo.IsDuplicateKeyError(err) || c.IdempotencyKey == "" {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	var existing campaignDoc
	filter := bson.M{"ownerId": c.OwnerID, "idempotencyKey": c.IdempotencyKey}
	if err := r.coll.FindOne(ctx, filter).Decode(&existing); err != nil {
		return nil, fmt.Errorf("load idempotent campaign: %w", err)
	}
	return fromCampaignDoc(&existing)
}

func (r *CampaignRepositoryMongo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var doc campaignDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromCampaignDoc(&doc)
}

func (r *CampaignRepositoryMongo) MergeSceneAssets(ctx context.Context, id string, assets map[int]domain.AssetRef, updatedAt time.Time) error {
	set := bson.M{"updatedAt": updatedAt}
	for idx, ref := range assets {
		set["sceneAssets."+strconv.Itoa(idx)] = assetDoc{URL: ref.URL, StorageKey: ref.StorageKey}
	}
	return r.update(ctx, id, set)
}

func (r *CampaignRepositoryMongo) SetVideo(ctx context.Context, id string, video domain.AssetRef, updatedAt time.Time) error {
	return r.update(ctx, id, bson.M{
		"video":     assetDoc{URL: video.URL, StorageKey: video.StorageKey},
		"updatedAt": updatedAt,
	})
}

func (r *CampaignRepositoryMongo) update(ctx context.Context, id string, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepositoryMongo) ListByOwner(ctx context.Context, ownerID string, status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	filter := bson.M{"ownerId": ownerID}
	if status != "" {
		filter["status"] = string(status)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var campaigns []domain.Campaign
	for cur.Next(ctx) {
		var doc campaignDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		c, err := fromCampaignDoc(&doc)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, cur.Err()
}

func toCampaignDoc(c *domain.Campaign) *campaignDoc {
	doc := &campaignDoc{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Status:         string(c.Status),
		Metadata:       bson.M{},
		SceneAssets:    map[string]assetDoc{},
		IdempotencyKey: c.IdempotencyKey,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	for k, v := range c.Metadata {
		doc.Metadata[k] = v
	}
	for idx, ref := range c.SceneAssets {
		doc.SceneAssets[strconv.Itoa(idx)] = assetDoc{URL: ref.URL, StorageKey: ref.StorageKey}
	}
	if c.Video != nil {
		doc.Video = &assetDoc{URL: c.Video.URL, StorageKey: c.Video.StorageKey}
	}
	return doc
}

func fromCampaignDoc(doc *campaignDoc) (*domain.Campaign, error) {
	c := &domain.Campaign{
		ID:             doc.ID,
		OwnerID:        doc.OwnerID,
		Status:         domain.CampaignStatus(doc.Status),
		SceneAssets:    make(map[int]domain.AssetRef, len(doc.SceneAssets)),
		IdempotencyKey: doc.IdempotencyKey,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
	// round-trip through JSON so metadata has the same value types on every driver
	raw, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	c.Metadata = map[string]any{}
	if err := json.Unmarshal(raw, &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	for k, ref := range doc.SceneAssets {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode scene assets: bad index %q", k)
		}
		c.SceneAssets[idx] = domain.AssetRef{URL: ref.URL, StorageKey: ref.StorageKey}
	}
	if doc.Video != nil {
		c.Video = &domain.AssetRef{URL: doc.Video.URL, StorageKey: doc.Video.StorageKey}
	}
	return c, nil
}
