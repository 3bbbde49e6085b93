package core

// AssetKind distinguishes one-shot sound effects from background tracks.
type AssetKind string

const (
	// AssetKindSfx is a one-shot sound effect.
	AssetKindSfx AssetKind = "sfx"
	// AssetKindBackground is a looping or one-pass background track.
	AssetKindBackground AssetKind = "background"
)

// BackgroundType categorizes background tracks for authoring purposes.
type BackgroundType string

const (
	BackgroundTypeMusic      BackgroundType = "music"
	BackgroundTypeAmbient    BackgroundType = "ambient"
	BackgroundTypeAtmosphere BackgroundType = "atmosphere"
)

// AssetDescriptor holds the per-asset defaults registered alongside an audio
// asset. The pipeline only reads it; ownership stays with the asset store.
type AssetDescriptor struct {
	ID            string         `toml:"id"`
	Kind          AssetKind      `toml:"kind"`
	DefaultVolume float64        `toml:"default_volume"`
	DefaultFadeIn float64        `toml:"default_fade_in"`
	DefaultFade   float64        `toml:"default_fade_out"`
	Loop          bool           `toml:"loop"`
	DuckSpeech    bool           `toml:"duck_speech"`
	DuckLevel     float64        `toml:"duck_level"`
	Type          BackgroundType `toml:"type"`
}

// CategoryDefaults holds the global defaults for one audio category. Fields
// that do not apply to a category (Loop for sfx, PauseSpeech for background)
// are simply ignored by the resolver.
type CategoryDefaults struct {
	Volume      float64 `toml:"volume"`
	FadeIn      float64 `toml:"fade_in"`
	FadeOut     float64 `toml:"fade_out"`
	Loop        bool    `toml:"loop"`
	PauseSpeech bool    `toml:"pause_speech"`
	DuckSpeech  bool    `toml:"duck_speech"`
	DuckLevel   float64 `toml:"duck_level"`
}

// AudioDefaults is the project-wide default set for the three audio
// categories. It is loaded once per render and never mutated during one.
type AudioDefaults struct {
	Voice      CategoryDefaults `toml:"voice"`
	Sfx        CategoryDefaults `toml:"sfx"`
	Background CategoryDefaults `toml:"background"`
}

// RenderSettings is the per-project output surface consumed by a render:
// container format, PCM parameters, normalization, and timing constants.
type RenderSettings struct {
	Format               string  `toml:"format"`
	SampleRate           int     `toml:"sample_rate"`
	BitDepth             int     `toml:"bit_depth"`
	Normalize            bool    `toml:"normalize"`
	NormalizeMode        string  `toml:"normalize_mode"`
	NormalizeTarget      float64 `toml:"normalize_target"`
	ChapterMarkers       bool    `toml:"chapter_markers"`
	EndPaddingSeconds    float64 `toml:"end_padding_seconds"`
	DuckRampMilliseconds int     `toml:"duck_ramp_milliseconds"`
}
