package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrMalformedRequest      = errors.New("malformed request")
	ErrInvalidCampaignInput  = errors.New("invalid campaign input")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrStoreUnavailable      = errors.New("object store unavailable")
	ErrStoreRejected         = errors.New("object store rejected upload")
	ErrMultipartUploadFailed = errors.New("multipart upload failed")
)

// ErrorClass returns a stable snake_case identifier for the taxonomy error
// wrapped by err, or "internal" when none matches.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ErrInvalidCampaignInput):
		return "invalid_campaign_input"
	case errors.Is(err, ErrCampaignNotFound):
		return "campaign_not_found"
	case errors.Is(err, ErrMultipartUploadFailed):
		return "multipart_upload_failed"
	case errors.Is(err, ErrStoreRejected):
		return "store_rejected"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "internal"
}
