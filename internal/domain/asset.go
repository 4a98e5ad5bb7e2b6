package domain

// AssetKind enumerates campaign asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Valid reports whether k is a supported asset kind.
func (k AssetKind) Valid() bool {
	return k == AssetKindImage || k == AssetKindVideo
}

// UploadedAsset is the result of one acknowledged object-store write. It is
// consumed immediately by the orchestrator and never persisted on its own.
type UploadedAsset struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Bucket string `json:"bucket"`
	ETag   string `json:"etag,omitempty"`
	Bytes  int64  `json:"bytes"`
}
