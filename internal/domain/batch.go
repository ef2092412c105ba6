package domain

// Batch input constraints shared by the use cases and the HTTP layer.
const (
	// MaxFrameSources caps the number of reference images conditioning one
	// first frame.
	MaxFrameSources = 8
	// MinClipSeconds and MaxClipSeconds bound video clip durations accepted
	// by the provider.
	MinClipSeconds = 4
	MaxClipSeconds = 12
)

// ReferenceImageItem asks for one reference image at the given ordinal.
type ReferenceImageItem struct {
	Ordinal  int    `json:"ordinal"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Prompt   string `json:"prompt"`
}

// FirstFrameItem asks for one composed first frame, conditioned on the
// reference images at SourceOrdinals.
type FirstFrameItem struct {
	Ordinal        int    `json:"ordinal"`
	Prompt         string `json:"prompt"`
	SourceOrdinals []int  `json:"source_ordinals"`
}

// VideoClipItem asks for one video clip animated from the first frame at
// FrameOrdinal.
type VideoClipItem struct {
	Ordinal         int    `json:"ordinal"`
	Prompt          string `json:"prompt"`
	FrameOrdinal    int    `json:"frame_ordinal"`
	DurationSeconds int    `json:"duration_seconds"`
}
