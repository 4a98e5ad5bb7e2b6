// Package assetkey derives object-store keys for campaign assets.
package assetkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"campaignsvc/internal/domain"
)

const defaultFilename = "upload"

// Params identifies one stored object.
type Params struct {
	CampaignID string
	Kind       domain.AssetKind
	// SceneIndex is set for scene images only.
	SceneIndex *int
	Filename   string
	Timestamp  time.Time
}

// Build returns a key shaped as
//
//	campaigns/{campaignId}/{kind}s/[scene-{index}/]{unixMillis}-{filename}
//
// Distinct params always produce distinct keys.
func Build(p Params) (string, error) {
	campaignID := strings.TrimSpace(p.CampaignID)
	if campaignID == "" {
		return "", errors.New("assetkey: campaign id is required")
	}
	if strings.Contains(campaignID, "/") {
		return "", fmt.Errorf("assetkey: invalid campaign id %q", campaignID)
	}
	if !p.Kind.Valid() {
		return "", fmt.Errorf("assetkey: unknown asset kind %q", p.Kind)
	}
	if p.SceneIndex != nil {
		if p.Kind != domain.AssetKindImage {
			return "", errors.New("assetkey: scene index only applies to images")
		}
		if *p.SceneIndex < 0 {
			return "", fmt.Errorf("assetkey: negative scene index %d", *p.SceneIndex)
		}
	}

	var b strings.Builder
	b.WriteString("campaigns/")
	b.WriteString(campaignID)
	b.WriteString("/")
	b.WriteString(string(p.Kind))
	b.WriteString("s/")
	if p.SceneIndex != nil {
		b.WriteString("scene-")
		b.WriteString(strconv.Itoa(*p.SceneIndex))
		b.WriteString("/")
	}
	b.WriteString(strconv.FormatInt(p.Timestamp.UnixMilli(), 10))
	b.WriteString("-")
	b.WriteString(EscapeFilename(p.Filename))
	return b.String(), nil
}

// EscapeFilename keeps the base name of a client-supplied filename, applies
// NFC normalization and percent-escapes every byte outside [A-Za-z0-9._-].
func EscapeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return defaultFilename
	}
	name = norm.NFC.String(name)

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}
