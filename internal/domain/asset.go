package domain

import "time"

// AssetKind enumerates the logical slot categories of generated media.
type AssetKind string

const (
	AssetKindReferenceImage AssetKind = "reference_image"
	AssetKindFirstFrame     AssetKind = "first_frame"
	AssetKindVideoClip      AssetKind = "video_clip"
)

// Valid reports whether the kind is one of the known slot categories.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetKindReferenceImage, AssetKindFirstFrame, AssetKindVideoClip:
		return true
	}
	return false
}

// Asset is one persisted media artifact. The (StoryID, Kind, Ordinal) triple
// identifies its slot; at most one asset exists per slot, enforced by a
// unique constraint in the database rather than in-process locking.
type Asset struct {
	ID         string
	StoryID    string
	Kind       AssetKind
	Ordinal    int
	StorageKey string
	ThumbKey   string
	MIME       string
	Meta       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
