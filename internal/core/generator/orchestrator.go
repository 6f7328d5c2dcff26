// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file implements the generation Orchestrator, the single entry point
// for running prompt generation jobs.
//
// Logic Flow:
//
//  1. Start validates the generation parameters against the configured
//     ranges, confirms an API credential is available, and claims the queue
//     by marking every pending video as processing. Validation failures
//     mutate nothing.
//  2. Only one job runs at a time. The job executes on its own goroutine,
//     working through the claimed videos sequentially and delegating each
//     one to the per-video workflow.
//  3. A failed video is recorded and skipped; the job keeps going. Progress
//     and the terminal outcome are published on the event channel.
//  4. Stop cancels the job's context. The worker notices between videos and
//     inside long waits such as the upload poll loop. Videos the job never
//     reached are returned to pending so the next job picks them up.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// Sentinel errors returned by Start and the maintenance operations.
var (
	ErrAlreadyRunning  = errors.New("a generation job is already running")
	ErrNoPendingVideos = errors.New("no pending videos in the queue")
)

// State describes the orchestrator's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// eventBufferSize bounds the event channel. Progress events are dropped
// when the consumer lags; the buffer is large enough that the single
// completion event always fits.
const eventBufferSize = 128

// VideoProcessor runs the full pipeline for one video and reports how many
// prompts were persisted. Implemented by workflow.VideoPromptWorkflow.
type VideoProcessor interface {
	Process(ctx context.Context, video *model.Video, params *model.GenerationParameters, progress model.ProgressFunc) (int, error)
}

// Store is the slice of the persistence layer the orchestrator needs.
type Store interface {
	PendingVideos() ([]*model.Video, error)
	PendingCount() (int, error)
	UpdateVideoStatus(videoID int64, status string) error
	// ResetProcessingVideos returns videos stuck in processing to pending.
	ResetProcessingVideos() (int, error)
	// ResetFailedVideos returns errored videos to pending for a retry.
	ResetFailedVideos() (int, error)
	// ResetAllVideos returns every video to pending.
	ResetAllVideos() (int, error)
}

// JobStatus is a point-in-time snapshot of the orchestrator for the API.
type JobStatus struct {
	State        State          `json:"state"`
	JobID        string         `json:"job_id,omitempty"`
	Percent      int            `json:"percent"`
	CurrentVideo string         `json:"current_video,omitempty"`
	Stats        model.JobStats `json:"stats"`
}

// Orchestrator coordinates generation jobs. Construct one per process with
// NewOrchestrator and share it between the HTTP handlers.
type Orchestrator struct {
	config    *cloud.Config
	processor VideoProcessor
	store     Store
	events    chan JobEvent

	mu           sync.Mutex
	running      bool
	state        State
	jobID        string
	cancel       context.CancelFunc
	stats        model.JobStats
	percent      int
	currentVideo string
}

// NewOrchestrator wires an orchestrator with its dependencies injected so
// tests can substitute fakes for the processor and store.
func NewOrchestrator(config *cloud.Config, processor VideoProcessor, store Store) *Orchestrator {
	return &Orchestrator{
		config:    config,
		processor: processor,
		store:     store,
		state:     StateIdle,
		events:    make(chan JobEvent, eventBufferSize),
	}
}

// Events returns the channel on which jobs publish progress and completion.
func (o *Orchestrator) Events() <-chan JobEvent {
	return o.events
}

// Start begins a new generation job over all pending videos and returns its
// job identifier. Parameters are normalized (zero values take configured
// defaults) before validation; nothing is mutated when validation fails.
func (o *Orchestrator) Start(params model.GenerationParameters) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return "", ErrAlreadyRunning
	}

	normalized, err := o.normalizeParameters(params)
	if err != nil {
		return "", err
	}
	if _, err := cloud.ResolveAPIKey(); err != nil {
		return "", err
	}

	videos, err := o.store.PendingVideos()
	if err != nil {
		return "", fmt.Errorf("failed to load the pending queue: %w", err)
	}
	if len(videos) == 0 {
		return "", ErrNoPendingVideos
	}

	// Claim the queue up front so the UI reflects the job immediately and
	// concurrently added videos belong to the next job, not this one.
	for _, video := range videos {
		if err := o.store.UpdateVideoStatus(video.ID, model.VideoStatusProcessing); err != nil {
			if _, resetErr := o.store.ResetProcessingVideos(); resetErr != nil {
				slog.Error("failed to roll back claimed videos", "error", resetErr)
			}
			return "", fmt.Errorf("failed to claim video %s: %w", video.Filename, err)
		}
		video.Status = model.VideoStatusProcessing
	}

	jobID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	o.running = true
	o.state = StateRunning
	o.jobID = jobID
	o.cancel = cancel
	o.percent = 0
	o.currentVideo = ""
	o.stats = model.JobStats{
		TotalVideos:           len(videos),
		TotalPromptsRequested: 0,
	}

	slog.Info("generation job started",
		"job_id", jobID,
		"videos", len(videos),
		"prompts_per_video", normalized.PromptsPerVideo)

	go o.run(ctx, jobID, videos, normalized)
	return jobID, nil
}

// Stop requests cancellation of the running job. It reports whether there
// was a job to stop; the job itself winds down asynchronously.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running || o.cancel == nil {
		return false
	}
	slog.Info("generation job stop requested", "job_id", o.jobID)
	o.cancel()
	return true
}

// IsRunning reports whether a job is currently active.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Status returns a snapshot of the orchestrator's current state.
func (o *Orchestrator) Status() JobStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return JobStatus{
		State:        o.state,
		JobID:        o.jobID,
		Percent:      o.percent,
		CurrentVideo: o.currentVideo,
		Stats:        o.stats,
	}
}

// Stats returns the statistics of the current or most recent job.
func (o *Orchestrator) Stats() model.JobStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// PendingCount reports how many videos are waiting in the queue.
func (o *Orchestrator) PendingCount() (int, error) {
	return o.store.PendingCount()
}

// ResetVideoStatuses returns every video to pending. Refused while a job is
// running since it would fight the worker over row states.
func (o *Orchestrator) ResetVideoStatuses() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return 0, ErrAlreadyRunning
	}
	return o.store.ResetAllVideos()
}

// CleanupFailedVideos returns errored videos to pending so a later job can
// retry them. Refused while a job is running.
func (o *Orchestrator) CleanupFailedVideos() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return 0, ErrAlreadyRunning
	}
	return o.store.ResetFailedVideos()
}

// normalizeParameters fills defaulted fields and validates the result
// against the configured ranges.
func (o *Orchestrator) normalizeParameters(params model.GenerationParameters) (*model.GenerationParameters, error) {
	gen := o.config.Generation

	if params.PromptsPerVideo == 0 {
		params.PromptsPerVideo = gen.DefaultPromptsPerVideo
	}
	if params.BatchCap == 0 {
		params.BatchCap = gen.MaxPromptsPerBatch
	}

	if params.PromptsPerVideo < gen.MinPromptsPerVideo || params.PromptsPerVideo > gen.MaxPromptsPerVideo {
		return nil, fmt.Errorf("prompts per video must be between %d and %d, got %d",
			gen.MinPromptsPerVideo, gen.MaxPromptsPerVideo, params.PromptsPerVideo)
	}
	if minC, maxC := o.config.ComplexityRange(); params.ComplexityLevel < minC || params.ComplexityLevel > maxC {
		return nil, fmt.Errorf("complexity level must be between %d and %d, got %d", minC, maxC, params.ComplexityLevel)
	}
	if minV, maxV := o.config.VariationRange(); params.VariationLevel < minV || params.VariationLevel > maxV {
		return nil, fmt.Errorf("variation level must be between %d and %d, got %d", minV, maxV, params.VariationLevel)
	}
	if !o.isAllowedAspectRatio(params.AspectRatio) {
		return nil, fmt.Errorf("aspect ratio %q is not one of the supported ratios %v",
			params.AspectRatio, gen.AvailableAspectRatios)
	}
	if params.BatchCap < 1 {
		return nil, fmt.Errorf("batch cap must be positive, got %d", params.BatchCap)
	}
	return &params, nil
}

func (o *Orchestrator) isAllowedAspectRatio(ratio string) bool {
	for _, allowed := range o.config.Generation.AvailableAspectRatios {
		if ratio == allowed {
			return true
		}
	}
	return false
}

// run is the job worker. It owns the claimed videos until it exits.
func (o *Orchestrator) run(ctx context.Context, jobID string, videos []*model.Video, params *model.GenerationParameters) {
	total := len(videos)
	stopped := false

	defer func() {
		if r := recover(); r != nil {
			slog.Error("generation job panicked", "job_id", jobID, "panic", r)
			if _, err := o.store.ResetProcessingVideos(); err != nil {
				slog.Error("failed to reset processing videos after panic", "error", err)
			}
			o.finish(jobID, StateFailed, fmt.Sprintf("Generation failed unexpectedly: %v", r))
		}
	}()

	for i, video := range videos {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		index := i
		o.setProgress(index*100/total, video.Filename)
		progress := func(percent int, message string) {
			overall := (index*100 + percent) / total
			o.setProgress(overall, video.Filename)
			o.publish(JobEvent{
				Kind:         EventProgress,
				JobID:        jobID,
				Percent:      overall,
				Message:      message,
				CurrentVideo: video.Filename,
				Stats:        o.Stats(),
			})
		}

		o.addRequested(params.PromptsPerVideo)
		persisted, err := o.processor.Process(ctx, video, params, progress)

		if err != nil && ctx.Err() != nil {
			// The pipeline was interrupted by cancellation, not a real
			// failure. Leave the video in processing; the reset below
			// returns it to pending.
			stopped = true
			break
		}

		if err != nil {
			slog.Warn("video failed, continuing with the rest of the queue",
				"job_id", jobID, "video", video.Filename, "error", err)
			o.recordFailure(video)
			continue
		}
		o.recordSuccess(video, persisted)
	}

	if stopped {
		if reset, err := o.store.ResetProcessingVideos(); err != nil {
			slog.Error("failed to return unprocessed videos to pending", "job_id", jobID, "error", err)
		} else if reset > 0 {
			slog.Info("returned unprocessed videos to pending", "job_id", jobID, "videos", reset)
		}
		o.finish(jobID, StateStopped, o.completionMessage(true))
		return
	}
	o.finish(jobID, StateCompleted, o.completionMessage(false))
}

// recordSuccess marks the video completed and folds its results into the
// job statistics.
func (o *Orchestrator) recordSuccess(video *model.Video, persisted int) {
	if err := o.store.UpdateVideoStatus(video.ID, model.VideoStatusCompleted); err != nil {
		slog.Error("failed to mark video completed", "video", video.Filename, "error", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.ProcessedVideos++
	o.stats.SuccessfulPrompts += persisted
}

// recordFailure marks the video errored. The job carries on.
func (o *Orchestrator) recordFailure(video *model.Video) {
	if err := o.store.UpdateVideoStatus(video.ID, model.VideoStatusError); err != nil {
		slog.Error("failed to mark video errored", "video", video.Filename, "error", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.FailedVideos++
}

func (o *Orchestrator) addRequested(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.TotalPromptsRequested += count
}

func (o *Orchestrator) setProgress(percent int, currentVideo string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.percent = percent
	o.currentVideo = currentVideo
}

// finish transitions the orchestrator out of the running state and publishes
// the job's single completion event.
func (o *Orchestrator) finish(jobID string, state State, message string) {
	o.mu.Lock()
	o.running = false
	o.state = state
	o.cancel = nil
	if state == StateCompleted {
		o.percent = 100
	}
	o.currentVideo = ""
	stats := o.stats
	o.mu.Unlock()

	slog.Info("generation job finished",
		"job_id", jobID,
		"state", string(state),
		"processed", stats.ProcessedVideos,
		"failed", stats.FailedVideos,
		"prompts", stats.SuccessfulPrompts)

	o.publish(JobEvent{
		Kind:    EventCompleted,
		JobID:   jobID,
		Percent: o.Status().Percent,
		Message: message,
		Success: state != StateFailed,
		Stats:   stats,
	})
}

// completionMessage mirrors the summary line shown to the user when a job
// ends.
func (o *Orchestrator) completionMessage(stopped bool) string {
	stats := o.Stats()
	if stopped {
		return fmt.Sprintf("Generation stopped after %d of %d videos, %d prompts created.",
			stats.ProcessedVideos+stats.FailedVideos, stats.TotalVideos, stats.SuccessfulPrompts)
	}
	if stats.FailedVideos > 0 {
		return fmt.Sprintf("Generation finished: %d prompts created for %d videos, %d videos failed.",
			stats.SuccessfulPrompts, stats.ProcessedVideos, stats.FailedVideos)
	}
	return fmt.Sprintf("Generation complete! Created %d prompts for %d videos.",
		stats.SuccessfulPrompts, stats.ProcessedVideos)
}

// publish sends an event without ever blocking the worker. A slow or absent
// consumer costs progress events, never correctness.
// publish delivers an event to the channel. Progress events are droppable:
// when the consumer lags and the buffer is full they are discarded, newest
// first. Completion events fire exactly once per job and are never lost;
// buffered progress events are evicted to make room for them. Eviction is
// safe because the job goroutine is the only sender.
func (o *Orchestrator) publish(event JobEvent) {
	if event.Kind != EventCompleted {
		select {
		case o.events <- event:
		default:
		}
		return
	}

	for attempt := 0; ; attempt++ {
		select {
		case o.events <- event:
			return
		default:
		}
		select {
		case evicted := <-o.events:
			if evicted.Kind == EventCompleted && attempt < eventBufferSize {
				// A prior job's completion that was never consumed. Put
				// it back into the slot just freed and evict the next
				// buffered event instead. The attempt bound keeps this
				// from cycling when the buffer holds nothing else.
				o.events <- evicted
				continue
			}
			slog.Warn("event channel full, dropping buffered progress event", "job_id", event.JobID)
		default:
		}
	}
}
