// Package worker provides a NATS worker that processes render jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
)

const defaultRenderTimeout = 5 * time.Minute

// NatsWorker listens for render jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	scripts        core.ObjectStore
	renders        core.ObjectStore
	processor      core.RenderProcessor
	renderTimeout  time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. A zero timeout
// selects the default per-job limit around the synthesis barrier.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	scripts core.ObjectStore,
	renders core.ObjectStore,
	processor core.RenderProcessor,
	renderTimeout time.Duration,
	log *logger.Logger,
) (*NatsWorker, error) {
	if renderTimeout <= 0 {
		renderTimeout = defaultRenderTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		scripts:        scripts,
		renders:        renders,
		processor:      processor,
		renderTimeout:  renderTimeout,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.renderTimeout)
	defer cancel()

	var event core.RenderRequestedEvent

	unmarshalErr := json.Unmarshal(msg.Data, &event)
	if unmarshalErr != nil {
		w.log.Error("Failed to unmarshal render request: %v", unmarshalErr)

		return
	}

	replyEvent, processErr := w.processRenderJob(ctx, &event)
	if processErr != nil {
		w.log.Error("Failed to process render job for workflow %s: %v", event.Header.WorkflowID, processErr)

		return
	}

	publishErr := w.publishReplyEvent(msg, replyEvent)
	if publishErr != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, publishErr)
	}
}

// processRenderJob downloads the script, renders it, and uploads the audio.
func (w *NatsWorker) processRenderJob(
	ctx context.Context,
	event *core.RenderRequestedEvent,
) (*core.RenderCompletedEvent, error) {
	script, downloadErr := w.scripts.Download(ctx, event.ScriptKey)
	if downloadErr != nil {
		return nil, fmt.Errorf("failed to download script for key '%s': %w", event.ScriptKey, downloadErr)
	}

	settings := core.RenderSettings{
		Format:               event.Format,
		SampleRate:           0,
		BitDepth:             0,
		Normalize:            event.Normalize,
		NormalizeMode:        "",
		NormalizeTarget:      0,
		ChapterMarkers:       event.ChapterMarkers,
		EndPaddingSeconds:    0,
		DuckRampMilliseconds: 0,
	}

	result, renderErr := w.processor.Render(ctx, script, settings)
	if renderErr != nil {
		return nil, fmt.Errorf("failed to render script: %w", renderErr)
	}

	audioKey := uuid.NewString() + "." + result.Format

	uploadErr := w.renders.Upload(ctx, audioKey, result.Audio)
	if uploadErr != nil {
		return nil, fmt.Errorf("failed to upload rendered audio for key '%s': %w", audioKey, uploadErr)
	}

	return &core.RenderCompletedEvent{
		Header:          event.Header,
		AudioKey:        audioKey,
		Format:          result.Format,
		DurationSamples: result.DurationSamples,
		Markers:         result.Markers,
		Warnings:        result.Warnings,
	}, nil
}

// publishReplyEvent marshals and responds with the RenderCompletedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *core.RenderCompletedEvent) error {
	replyData, marshalErr := json.Marshal(replyEvent)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal reply event: %w", marshalErr)
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		return fmt.Errorf("failed to publish reply event: %w", respondErr)
	}

	return nil
}
