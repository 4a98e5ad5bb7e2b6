// Package ingest drives one campaign-creation request from record creation
// through asset uploads to reconciliation.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"campaignsvc/internal/assetkey"
	"campaignsvc/internal/campaign"
	"campaignsvc/internal/domain"
	"campaignsvc/internal/infra"
	"campaignsvc/internal/storage"
)

// DefaultUploadConcurrency bounds concurrent file uploads within one request.
const DefaultUploadConcurrency = 4

// Stage names the orchestrator state reached by a request.
type Stage string

const (
	StageReceived        Stage = "received"
	StageRecordCreated   Stage = "record_created"
	StageUploadingAssets Stage = "uploading_assets"
	StageReconciled      Stage = "reconciled"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// RecordStore is the part of campaign.Store the orchestrator drives.
type RecordStore interface {
	CreateCampaign(ctx context.Context, in campaign.CreateInput) (*domain.Campaign, error)
	AttachSceneAssets(ctx context.Context, campaignID string, assets []domain.SceneAssetInput) error
	AttachVideo(ctx context.Context, campaignID, url, key string) error
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
}

// ObjectStore is the part of storage.Client the orchestrator drives.
type ObjectStore interface {
	PutObject(ctx context.Context, data []byte, key, contentType string, metadata map[string]string) (domain.UploadedAsset, error)
	PutObjectMultipart(ctx context.Context, data []byte, key, contentType string, metadata map[string]string, onProgress storage.ProgressFunc) (domain.UploadedAsset, error)
}

// File is one uploaded binary.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SceneImage is a file bound to a scene slot.
type SceneImage struct {
	Index int
	File  File
}

// Request is the decoded inbound bundle.
type Request struct {
	OwnerID        string
	Metadata       map[string]any
	IdempotencyKey string
	SceneImages    []SceneImage
	Video          *File
}

// AssetFailure describes one file that did not make it into the record.
type AssetFailure struct {
	Field      string           `json:"field"`
	Kind       domain.AssetKind `json:"kind"`
	SceneIndex *int             `json:"sceneIndex,omitempty"`
	Error      string           `json:"error"`
	Class      string           `json:"class"`
}

// Result is the outcome of a request that got past record creation.
type Result struct {
	Campaign        *domain.Campaign
	Failures        []AssetFailure
	ReconcileErrors []string
}

// Options configures a Service.
type Options struct {
	UploadConcurrency int
	Logger            zerolog.Logger
	Metrics           *infra.Metrics
	Now               func() time.Time
}

// Service is the ingestion orchestrator.
type Service struct {
	records     RecordStore
	objects     ObjectStore
	concurrency int
	logger      zerolog.Logger
	metrics     *infra.Metrics
	now         func() time.Time
}

// NewService wires the orchestrator to its record and object stores.
func NewService(records RecordStore, objects ObjectStore, opts Options) *Service {
	s := &Service{
		records:     records,
		objects:     objects,
		concurrency: opts.UploadConcurrency,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultUploadConcurrency
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// uploadResult is the tagged per-file outcome collected by the worker pool.
type uploadResult struct {
	field      string
	kind       domain.AssetKind
	sceneIndex *int
	asset      domain.UploadedAsset
	err        error
}

// Ingest runs a request to completion. An error is returned only when the
// request fails before the campaign record exists; upload and reconciliation
// problems are reported on the Result. Cancelling ctx after the record is
// created does not stop the remaining uploads.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	logger := s.logger.With().Str("owner_id", req.OwnerID).Logger()
	logger.Debug().Str("stage", string(StageReceived)).Int("scene_images", len(req.SceneImages)).Bool("video", req.Video != nil).Msg("ingest: request received")

	if err := validateRequest(req); err != nil {
		s.fail(logger, StageReceived, err)
		return nil, err
	}

	created, err := s.records.CreateCampaign(ctx, campaign.CreateInput{
		OwnerID:        req.OwnerID,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		s.fail(logger, StageRecordCreated, err)
		return nil, err
	}
	logger = logger.With().Str("campaign_id", created.ID).Logger()
	if created.Replayed {
		// a repeated idempotency key is a no-op: nothing is uploaded again
		s.metrics.ObserveIngestion("replayed")
		logger.Info().Str("stage", string(StageCompleted)).Msg("ingest: idempotency key replayed, returning existing campaign")
		return &Result{Campaign: created}, nil
	}
	logger.Info().Str("stage", string(StageRecordCreated)).Msg("ingest: campaign record created")

	// past record creation the flow is not interrupted by the caller;
	// multipart uploads stay bounded by the client's own timeout
	ctx = context.WithoutCancel(ctx)

	results := s.uploadAll(ctx, logger, created.ID, req)

	res := &Result{}
	var scenes []domain.SceneAssetInput
	var video *domain.UploadedAsset
	for _, r := range results {
		if r.err != nil {
			res.Failures = append(res.Failures, AssetFailure{
				Field:      r.field,
				Kind:       r.kind,
				SceneIndex: r.sceneIndex,
				Error:      r.err.Error(),
				Class:      domain.ErrorClass(r.err),
			})
			continue
		}
		if r.kind == domain.AssetKindVideo {
			asset := r.asset
			video = &asset
			continue
		}
		scenes = append(scenes, domain.SceneAssetInput{SceneNumber: *r.sceneIndex, ImageURL: r.asset.URL, ImageKey: r.asset.Key})
	}

	if err := s.records.AttachSceneAssets(ctx, created.ID, scenes); err != nil {
		res.ReconcileErrors = append(res.ReconcileErrors, err.Error())
		logger.Error().Err(err).Int("scenes", len(scenes)).Msg("ingest: attach scene assets failed; uploads left unlinked")
	}
	if video != nil {
		if err := s.records.AttachVideo(ctx, created.ID, video.URL, video.Key); err != nil {
			res.ReconcileErrors = append(res.ReconcileErrors, err.Error())
			logger.Error().Err(err).Str("key", video.Key).Msg("ingest: attach video failed; upload left unlinked")
		}
	}
	logger.Debug().Str("stage", string(StageReconciled)).Int("linked_scenes", len(scenes)).Bool("video", video != nil).Int("reconcile_errors", len(res.ReconcileErrors)).Msg("ingest: reconciliation finished")

	final, err := s.records.GetCampaign(ctx, created.ID)
	if err != nil {
		// the record was created, so fall back to what creation returned
		logger.Error().Err(err).Msg("ingest: reload campaign failed")
		res.ReconcileErrors = append(res.ReconcileErrors, err.Error())
		final = created
	}
	res.Campaign = final

	outcome := "ok"
	switch {
	case len(res.ReconcileErrors) > 0:
		outcome = "reconcile_failed"
	case len(res.Failures) > 0:
		outcome = "partial"
	}
	s.metrics.ObserveIngestion(outcome)
	logger.Info().Str("stage", string(StageCompleted)).Str("outcome", outcome).Int("failed_assets", len(res.Failures)).Msg("ingest: completed")
	return res, nil
}

func (s *Service) fail(logger zerolog.Logger, stage Stage, err error) {
	s.metrics.ObserveIngestion(domain.ErrorClass(err))
	logger.Warn().Err(err).Str("stage", string(StageFailed)).Str("failed_at", string(stage)).Msg("ingest: request failed")
}

// uploadAll dispatches every file to a bounded pool. A failed upload never
// cancels its siblings.
func (s *Service) uploadAll(ctx context.Context, logger zerolog.Logger, campaignID string, req Request) []uploadResult {
	total := len(req.SceneImages)
	if req.Video != nil {
		total++
	}
	results := make([]uploadResult, total)
	if total == 0 {
		return results
	}
	logger.Debug().Str("stage", string(StageUploadingAssets)).Int("files", total).Msg("ingest: uploading assets")

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, img := range req.SceneImages {
		idx := img.Index
		g.Go(func() error {
			results[i] = s.uploadScene(ctx, campaignID, idx, img.File)
			return nil
		})
	}
	if req.Video != nil {
		g.Go(func() error {
			results[total-1] = s.uploadVideo(ctx, logger, campaignID, *req.Video)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) uploadScene(ctx context.Context, campaignID string, index int, f File) uploadResult {
	res := uploadResult{field: SceneField(index), kind: domain.AssetKindImage, sceneIndex: &index}
	key, err := assetkey.Build(assetkey.Params{
		CampaignID: campaignID,
		Kind:       domain.AssetKindImage,
		SceneIndex: &index,
		Filename:   f.Filename,
		Timestamp:  s.now(),
	})
	if err != nil {
		res.err = err
		return res
	}
	res.asset, res.err = s.objects.PutObject(ctx, f.Data, key, contentType(f, "image/jpeg"), objectMetadata(campaignID, f))
	return res
}

func (s *Service) uploadVideo(ctx context.Context, logger zerolog.Logger, campaignID string, f File) uploadResult {
	res := uploadResult{field: VideoField, kind: domain.AssetKindVideo}
	key, err := assetkey.Build(assetkey.Params{
		CampaignID: campaignID,
		Kind:       domain.AssetKindVideo,
		Filename:   f.Filename,
		Timestamp:  s.now(),
	})
	if err != nil {
		res.err = err
		return res
	}
	progress := func(p storage.Progress) {
		logger.Debug().Str("key", key).Int64("loaded", p.Loaded).Int64("total", p.Total).Float64("percentage", p.Percentage).Msg("ingest: video upload progress")
	}
	res.asset, res.err = s.objects.PutObjectMultipart(ctx, f.Data, key, contentType(f, "video/mp4"), objectMetadata(campaignID, f), progress)
	return res
}

const (
	// MetadataField is the multipart field carrying the JSON metadata blob.
	MetadataField = "metadata"
	// VideoField is the multipart field carrying the optional video.
	VideoField = "video"
	// SceneFieldPrefix prefixes scene image fields, e.g. "sceneImage_0".
	SceneFieldPrefix = "sceneImage_"
)

// SceneField returns the multipart field name for a scene index.
func SceneField(index int) string {
	return fmt.Sprintf("%s%d", SceneFieldPrefix, index)
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.OwnerID) == "" {
		return domain.ErrUnauthorized
	}
	if req.Metadata == nil {
		return fmt.Errorf("%w: metadata is required", domain.ErrMalformedRequest)
	}
	seen := make(map[int]struct{}, len(req.SceneImages))
	for _, img := range req.SceneImages {
		if img.Index < 0 {
			return fmt.Errorf("%w: negative scene index %d", domain.ErrMalformedRequest, img.Index)
		}
		if _, dup := seen[img.Index]; dup {
			return fmt.Errorf("%w: duplicate scene index %d", domain.ErrMalformedRequest, img.Index)
		}
		seen[img.Index] = struct{}{}
	}
	return nil
}

func contentType(f File, fallback string) string {
	if ct := strings.TrimSpace(f.ContentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return fallback
}

func objectMetadata(campaignID string, f File) map[string]string {
	return map[string]string{
		"campaign-id":       campaignID,
		"original-filename": assetkey.EscapeFilename(f.Filename),
	}
}
