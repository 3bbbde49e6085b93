package core

import "github.com/book-expert/events"

// RenderRequestedEvent asks the worker to render one markup script. The script
// body lives in the script object-store bucket under ScriptKey; only settings
// the author can override per render travel on the event itself.
type RenderRequestedEvent struct {
	Header         events.EventHeader `json:"header"`
	ScriptKey      string             `json:"scriptKey"`
	Format         string             `json:"format,omitempty"`
	Normalize      bool               `json:"normalize,omitempty"`
	ChapterMarkers bool               `json:"chapterMarkers,omitempty"`
}

// RenderCompletedEvent is the worker's reply for a finished render. AudioKey
// names the exported audio in the render object-store bucket.
type RenderCompletedEvent struct {
	Header          events.EventHeader `json:"header"`
	AudioKey        string             `json:"audioKey"`
	Format          string             `json:"format"`
	DurationSamples int                `json:"durationSamples"`
	Markers         []ChapterMarker    `json:"markers,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}
