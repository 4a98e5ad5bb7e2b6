package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/ingest"
)

const (
	multipartMemory = 32 << 20
	maxSceneIndex   = 999
)

var sceneFieldPattern = regexp.MustCompile(`^` + ingest.SceneFieldPrefix + `(\d+)$`)

type createCampaignResponse struct {
	Success         bool                  `json:"success"`
	Campaign        *domain.Campaign      `json:"campaign"`
	FailedAssets    []ingest.AssetFailure `json:"failedAssets"`
	ReconcileErrors []string              `json:"reconcileErrors,omitempty"`
}

// CreateCampaign handles POST /v1/campaigns.
func (a *App) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return
	}
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	}
	req, err := decodeCreateRequest(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.OwnerID = userID
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	res, err := a.Ingest.Ingest(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	failures := res.Failures
	if failures == nil {
		failures = []ingest.AssetFailure{}
	}
	a.json(w, http.StatusCreated, createCampaignResponse{
		Success:         true,
		Campaign:        res.Campaign,
		FailedAssets:    failures,
		ReconcileErrors: res.ReconcileErrors,
	})
}

// decodeCreateRequest reads the multipart bundle into a typed request. Only
// the metadata, sceneImage_{n} and video fields are accepted.
func decodeCreateRequest(r *http.Request) (ingest.Request, error) {
	var req ingest.Request
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, tooLarge
		}
		return req, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}
	defer r.MultipartForm.RemoveAll()
	form := r.MultipartForm

	var rawMetadata []byte
	for name, values := range form.Value {
		if name != ingest.MetadataField {
			return req, fmt.Errorf("%w: unexpected field %q", domain.ErrMalformedRequest, name)
		}
		if len(values) != 1 {
			return req, fmt.Errorf("%w: metadata must be sent once", domain.ErrMalformedRequest)
		}
		rawMetadata = []byte(values[0])
	}

	for name, headers := range form.File {
		if len(headers) != 1 {
			return req, fmt.Errorf("%w: field %q must carry exactly one file", domain.ErrMalformedRequest, name)
		}
		fh := headers[0]
		switch {
		case name == ingest.MetadataField:
			if rawMetadata != nil {
				return req, fmt.Errorf("%w: metadata must be sent once", domain.ErrMalformedRequest)
			}
			f, err := readFile(fh)
			if err != nil {
				return req, err
			}
			rawMetadata = f.Data
		case name == ingest.VideoField:
			f, err := readFile(fh)
			if err != nil {
				return req, err
			}
			req.Video = &f
		default:
			m := sceneFieldPattern.FindStringSubmatch(name)
			if m == nil {
				return req, fmt.Errorf("%w: unexpected file field %q", domain.ErrMalformedRequest, name)
			}
			index, err := strconv.Atoi(m[1])
			if err != nil || index > maxSceneIndex {
				return req, fmt.Errorf("%w: scene index out of range in %q", domain.ErrMalformedRequest, name)
			}
			f, err := readFile(fh)
			if err != nil {
				return req, err
			}
			req.SceneImages = append(req.SceneImages, ingest.SceneImage{Index: index, File: f})
		}
	}

	sort.Slice(req.SceneImages, func(i, j int) bool { return req.SceneImages[i].Index < req.SceneImages[j].Index })

	if len(rawMetadata) == 0 {
		return req, fmt.Errorf("%w: metadata is required", domain.ErrMalformedRequest)
	}
	if err := json.Unmarshal(rawMetadata, &req.Metadata); err != nil || req.Metadata == nil {
		return req, fmt.Errorf("%w: metadata must be a JSON object", domain.ErrMalformedRequest)
	}
	return req, nil
}

func readFile(fh *multipart.FileHeader) (ingest.File, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.File{}, fmt.Errorf("%w: open %s: %v", domain.ErrMalformedRequest, fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.File{}, fmt.Errorf("%w: read %s: %v", domain.ErrMalformedRequest, fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return ingest.File{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

// ListCampaigns handles GET /v1/campaigns.
func (a *App) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return
	}
	status, err := domain.ParseCampaignStatus(r.URL.Query().Get("status"))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.error(w, r, http.StatusBadRequest, "malformed_request", "limit must be a non-negative integer")
			return
		}
	}
	items, err := a.Campaigns.GetCampaignsForOwner(r.Context(), userID, status, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Campaign{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GetCampaign handles GET /v1/campaigns/{id}. Campaigns of other owners are
// reported as not found.
func (a *App) GetCampaign(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return
	}
	c, err := a.Campaigns.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err == nil && c.OwnerID != userID {
		err = domain.ErrCampaignNotFound
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, c)
}
