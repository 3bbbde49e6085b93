// main package for the render-client, a small CLI that validates scripts,
// submits render jobs, and downloads the finished audio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/markup"
	"github.com/FatStinkyPanda/talk2me-render/internal/objectstore"
)

// Flag names.
const (
	flagScript    = "script"
	flagOutput    = "output"
	flagCheck     = "check"
	flagURL       = "url"
	flagSubject   = "subject"
	flagScripts   = "script-bucket"
	flagRenders   = "render-bucket"
	flagFormat    = "format"
	flagNormalize = "normalize"
	flagChapters  = "chapters"
	flagTimeout   = "timeout"
)

// Flag descriptions.
const (
	flagScriptDesc    = "Path to the markup script to render"
	flagOutputDesc    = "Output file path for the rendered audio"
	flagCheckDesc     = "Validate the script's markup and exit"
	flagURLDesc       = "NATS server URL"
	flagSubjectDesc   = "Subject the render service listens on"
	flagScriptsDesc   = "Object store bucket for scripts"
	flagRendersDesc   = "Object store bucket for finished renders"
	flagFormatDesc    = "Output format (wav, mp3, flac)"
	flagNormalizeDesc = "Normalize the final mix"
	flagChaptersDesc  = "Derive chapter markers from flagged voice directives"
	flagTimeoutDesc   = "How long to wait for the render to complete"
)

// Defaults.
const (
	defaultURL     = nats.DefaultURL
	defaultSubject = "render.requested"
	defaultScripts = "RENDER_SCRIPTS"
	defaultRenders = "RENDER_AUDIO"
	defaultTimeout = 5 * time.Minute
)

const outputFilePermissions = 0o600

// ErrScriptRequired indicates that no script path was provided.
var ErrScriptRequired = errors.New("--script is required")

// ErrScriptInvalid indicates that --check found markup issues.
var ErrScriptInvalid = errors.New("script has markup issues")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	script    string
	output    string
	check     bool
	url       string
	subject   string
	scripts   string
	renders   string
	format    string
	normalize bool
	chapters  bool
	timeout   time.Duration
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	if flags.script == "" {
		return ErrScriptRequired
	}

	script, readErr := os.ReadFile(flags.script)
	if readErr != nil {
		return fmt.Errorf("failed to read script '%s': %w", flags.script, readErr)
	}

	if flags.check {
		return checkScript(script)
	}

	return submitRender(flags, script)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.script, flagScript, "", flagScriptDesc)
	flag.StringVar(&flags.output, flagOutput, "render.wav", flagOutputDesc)
	flag.BoolVar(&flags.check, flagCheck, false, flagCheckDesc)
	flag.StringVar(&flags.url, flagURL, defaultURL, flagURLDesc)
	flag.StringVar(&flags.subject, flagSubject, defaultSubject, flagSubjectDesc)
	flag.StringVar(&flags.scripts, flagScripts, defaultScripts, flagScriptsDesc)
	flag.StringVar(&flags.renders, flagRenders, defaultRenders, flagRendersDesc)
	flag.StringVar(&flags.format, flagFormat, "", flagFormatDesc)
	flag.BoolVar(&flags.normalize, flagNormalize, false, flagNormalizeDesc)
	flag.BoolVar(&flags.chapters, flagChapters, false, flagChaptersDesc)
	flag.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	flag.Parse()

	return flags
}

// checkScript reports every markup issue in the script instead of stopping at
// the first, so the author can fix the whole file in one pass.
func checkScript(script []byte) error {
	issues := markup.Validate(string(script))
	if len(issues) == 0 {
		fmt.Println("Script is valid.")

		return nil
	}

	for _, issue := range issues {
		fmt.Println(issue)
	}

	return fmt.Errorf("%w: %d found", ErrScriptInvalid, len(issues))
}

// submitRender uploads the script, requests a render, and downloads the
// finished audio.
func submitRender(flags appFlags, script []byte) error {
	natsConnection, connectErr := nats.Connect(flags.url)
	if connectErr != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", flags.url, connectErr)
	}

	defer natsConnection.Close()

	jetstreamContext, jetstreamErr := natsConnection.JetStream()
	if jetstreamErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jetstreamErr)
	}

	scripts, scriptsErr := objectstore.New(jetstreamContext, flags.scripts)
	if scriptsErr != nil {
		return fmt.Errorf("failed to open script bucket: %w", scriptsErr)
	}

	renders, rendersErr := objectstore.New(jetstreamContext, flags.renders)
	if rendersErr != nil {
		return fmt.Errorf("failed to open render bucket: %w", rendersErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	scriptKey := uuid.NewString() + ".txt"

	uploadErr := scripts.Upload(ctx, scriptKey, script)
	if uploadErr != nil {
		return fmt.Errorf("failed to upload script: %w", uploadErr)
	}

	request := core.RenderRequestedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		ScriptKey:      scriptKey,
		Format:         flags.format,
		Normalize:      flags.normalize,
		ChapterMarkers: flags.chapters,
	}

	requestData, marshalErr := json.Marshal(request)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal render request: %w", marshalErr)
	}

	reply, requestErr := natsConnection.Request(flags.subject, requestData, flags.timeout)
	if requestErr != nil {
		return fmt.Errorf("render request failed: %w", requestErr)
	}

	var completed core.RenderCompletedEvent

	unmarshalErr := json.Unmarshal(reply.Data, &completed)
	if unmarshalErr != nil {
		return fmt.Errorf("failed to unmarshal render reply: %w", unmarshalErr)
	}

	for _, warning := range completed.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	audio, downloadErr := renders.Download(ctx, completed.AudioKey)
	if downloadErr != nil {
		return fmt.Errorf("failed to download rendered audio '%s': %w", completed.AudioKey, downloadErr)
	}

	writeErr := os.WriteFile(flags.output, audio, outputFilePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write output '%s': %w", flags.output, writeErr)
	}

	fmt.Printf("Rendered %d samples to %s\n", completed.DurationSamples, flags.output)

	return nil
}
