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

package generator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// memoryStore is an in-memory Store for orchestrator tests.
type memoryStore struct {
	mu     sync.Mutex
	videos map[int64]*model.Video
}

func newMemoryStore(videos ...*model.Video) *memoryStore {
	s := &memoryStore{videos: make(map[int64]*model.Video)}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *memoryStore) PendingVideos() ([]*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Video
	for id := int64(1); id <= int64(len(s.videos)); id++ {
		if v, ok := s.videos[id]; ok && v.Status == model.VideoStatusPending {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memoryStore) PendingCount() (int, error) {
	return s.countByStatus(model.VideoStatusPending), nil
}

func (s *memoryStore) UpdateVideoStatus(videoID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok {
		return fmt.Errorf("no video %d", videoID)
	}
	v.Status = status
	return nil
}

func (s *memoryStore) ResetProcessingVideos() (int, error) {
	return s.resetStatus(model.VideoStatusProcessing), nil
}

func (s *memoryStore) ResetFailedVideos() (int, error) {
	return s.resetStatus(model.VideoStatusError), nil
}

func (s *memoryStore) ResetAllVideos() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.videos {
		if v.Status != model.VideoStatusPending {
			v.Status = model.VideoStatusPending
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) resetStatus(from string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.videos {
		if v.Status == from {
			v.Status = model.VideoStatusPending
			n++
		}
	}
	return n
}

func (s *memoryStore) countByStatus(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.videos {
		if v.Status == status {
			n++
		}
	}
	return n
}

func (s *memoryStore) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[id].Status
}

// scriptedProcessor returns a scripted outcome per video ID, optionally
// blocking until released so tests can observe a running job.
type scriptedProcessor struct {
	mu             sync.Mutex
	persisted      map[int64]int
	failIDs        map[int64]bool
	block          chan struct{} // when non-nil, Process waits here or on ctx
	processed      []int64
	progressBursts int // progress callbacks per video, default 1
}

func (p *scriptedProcessor) Process(ctx context.Context, video *model.Video, _ *model.GenerationParameters, progress model.ProgressFunc) (int, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	p.mu.Lock()
	p.processed = append(p.processed, video.ID)
	p.mu.Unlock()

	if p.failIDs[video.ID] {
		return 0, fmt.Errorf("scripted processing failure")
	}
	if progress != nil {
		bursts := p.progressBursts
		if bursts == 0 {
			bursts = 1
		}
		for i := 0; i < bursts; i++ {
			progress(100, "done")
		}
	}
	return p.persisted[video.ID], nil
}

func orchestratorTestConfig() *cloud.Config {
	cfg := cloud.NewConfig()
	cfg.Generation.DefaultPromptsPerVideo = 5
	cfg.Generation.MinPromptsPerVideo = 1
	cfg.Generation.MaxPromptsPerVideo = 50
	cfg.Generation.MaxPromptsPerBatch = 5
	cfg.Generation.MinComplexityLevel = 1
	cfg.Generation.MaxComplexityLevel = 5
	cfg.Generation.MinVariationLevel = 1
	cfg.Generation.MaxVariationLevel = 3
	cfg.Generation.AvailableAspectRatios = []string{"16:9", "9:16", "1:1"}
	return cfg
}

func validParams() model.GenerationParameters {
	return model.GenerationParameters{
		PromptsPerVideo: 3, ComplexityLevel: 2, AspectRatio: "16:9", VariationLevel: 1}
}

func pendingVideo(id int64) *model.Video {
	return &model.Video{
		ID:       id,
		Filename: fmt.Sprintf("clip-%d.mp4", id),
		Filepath: fmt.Sprintf("/videos/clip-%d.mp4", id),
		Status:   model.VideoStatusPending,
	}
}

// waitForCompletion drains events until the terminal event arrives.
func waitForCompletion(t *testing.T, events <-chan JobEvent) JobEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventCompleted {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for the completion event")
		}
	}
}

func TestStartFailsWithoutPendingVideos(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	orch := NewOrchestrator(orchestratorTestConfig(), &scriptedProcessor{}, newMemoryStore())

	_, err := orch.Start(validParams())
	assert.ErrorIs(t, err, ErrNoPendingVideos)
}

func TestStartFailsWithoutAPIKey(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "")
	store := newMemoryStore(pendingVideo(1))
	orch := NewOrchestrator(orchestratorTestConfig(), &scriptedProcessor{}, store)

	_, err := orch.Start(validParams())
	assert.ErrorIs(t, err, cloud.ErrAPIKeyMissing)
	// Nothing was claimed.
	assert.Equal(t, model.VideoStatusPending, store.status(1))
}

func TestStartRejectsInvalidParametersWithoutMutating(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1))
	orch := NewOrchestrator(orchestratorTestConfig(), &scriptedProcessor{}, store)

	cases := []model.GenerationParameters{
		{PromptsPerVideo: 999, ComplexityLevel: 2, AspectRatio: "16:9", VariationLevel: 1},
		{PromptsPerVideo: 3, ComplexityLevel: 0, AspectRatio: "16:9", VariationLevel: 1},
		{PromptsPerVideo: 3, ComplexityLevel: 2, AspectRatio: "4:3", VariationLevel: 1},
		{PromptsPerVideo: 3, ComplexityLevel: 2, AspectRatio: "16:9", VariationLevel: 9},
	}
	for _, params := range cases {
		_, err := orch.Start(params)
		require.Error(t, err)
	}
	assert.Equal(t, model.VideoStatusPending, store.status(1))
	assert.False(t, orch.IsRunning())
}

func TestStartAppliesDefaults(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 5}}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	params := validParams()
	params.PromptsPerVideo = 0 // takes the configured default of 5
	_, err := orch.Start(params)
	require.NoError(t, err)

	ev := waitForCompletion(t, orch.Events())
	assert.Equal(t, 5, ev.Stats.TotalPromptsRequested)
}

func TestJobProcessesQueueAndReportsStats(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1), pendingVideo(2))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 3, 2: 2}}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	jobID, err := orch.Start(validParams())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	ev := waitForCompletion(t, orch.Events())
	assert.Equal(t, jobID, ev.JobID)
	assert.True(t, ev.Success)
	assert.Equal(t, 2, ev.Stats.TotalVideos)
	assert.Equal(t, 2, ev.Stats.ProcessedVideos)
	assert.Equal(t, 6, ev.Stats.TotalPromptsRequested)
	assert.Equal(t, 5, ev.Stats.SuccessfulPrompts)
	assert.Equal(t, 0, ev.Stats.FailedVideos)

	assert.Equal(t, model.VideoStatusCompleted, store.status(1))
	assert.Equal(t, model.VideoStatusCompleted, store.status(2))
	assert.Equal(t, StateCompleted, orch.Status().State)
	assert.Equal(t, 100, orch.Status().Percent)
}

func TestFailedVideoDoesNotStopTheJob(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1), pendingVideo(2), pendingVideo(3))
	proc := &scriptedProcessor{
		persisted: map[int64]int{1: 3, 3: 3},
		failIDs:   map[int64]bool{2: true},
	}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	_, err := orch.Start(validParams())
	require.NoError(t, err)

	ev := waitForCompletion(t, orch.Events())
	assert.True(t, ev.Success)
	assert.Equal(t, 2, ev.Stats.ProcessedVideos)
	assert.Equal(t, 1, ev.Stats.FailedVideos)
	assert.Equal(t, 9, ev.Stats.TotalPromptsRequested)
	assert.Equal(t, 6, ev.Stats.SuccessfulPrompts)

	assert.Equal(t, model.VideoStatusError, store.status(2))
	assert.Equal(t, model.VideoStatusCompleted, store.status(3))
}

func TestOnlyOneJobRunsAtATime(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 3}, block: make(chan struct{})}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	_, err := orch.Start(validParams())
	require.NoError(t, err)

	_, err = orch.Start(validParams())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(proc.block)
	waitForCompletion(t, orch.Events())
	assert.False(t, orch.IsRunning())
}

func TestStopReturnsUnreachedVideosToPending(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1), pendingVideo(2), pendingVideo(3))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 3}, block: make(chan struct{})}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	_, err := orch.Start(validParams())
	require.NoError(t, err)

	// All three were claimed at start.
	assert.Equal(t, 3, store.countByStatus(model.VideoStatusProcessing))

	require.True(t, orch.Stop())
	ev := waitForCompletion(t, orch.Events())
	assert.True(t, ev.Success)
	assert.Equal(t, StateStopped, orch.Status().State)

	// The interrupted and unreached videos went back to pending.
	assert.Equal(t, 3, store.countByStatus(model.VideoStatusPending))
	assert.Equal(t, 0, store.countByStatus(model.VideoStatusProcessing))
}

func TestCompletionSurvivesFullEventBuffer(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 3}, progressBursts: 3 * eventBufferSize}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	_, err := orch.Start(validParams())
	require.NoError(t, err)

	// Nothing reads the channel while the job floods it with far more
	// progress updates than the buffer holds.
	deadline := time.Now().Add(5 * time.Second)
	for orch.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the job to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The completion event is still delivered, with progress events
	// dropped to make room for it.
	ev := waitForCompletion(t, orch.Events())
	assert.True(t, ev.Success)
	assert.Equal(t, StateCompleted, orch.Status().State)

	// And delivered exactly once: anything left buffered is progress.
	for {
		select {
		case extra := <-orch.Events():
			require.NotEqual(t, EventCompleted, extra.Kind)
		default:
			return
		}
	}
}

func TestStopWithoutRunningJob(t *testing.T) {
	orch := NewOrchestrator(orchestratorTestConfig(), &scriptedProcessor{}, newMemoryStore())
	assert.False(t, orch.Stop())
}

func TestMaintenanceRefusedWhileRunning(t *testing.T) {
	t.Setenv(cloud.EnvAPIKey, "test-key")
	store := newMemoryStore(pendingVideo(1))
	proc := &scriptedProcessor{persisted: map[int64]int{1: 3}, block: make(chan struct{})}
	orch := NewOrchestrator(orchestratorTestConfig(), proc, store)

	_, err := orch.Start(validParams())
	require.NoError(t, err)

	_, err = orch.ResetVideoStatuses()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = orch.CleanupFailedVideos()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(proc.block)
	waitForCompletion(t, orch.Events())
}

func TestCleanupFailedVideos(t *testing.T) {
	errored := pendingVideo(1)
	errored.Status = model.VideoStatusError
	done := pendingVideo(2)
	done.Status = model.VideoStatusCompleted
	store := newMemoryStore(errored, done)
	orch := NewOrchestrator(orchestratorTestConfig(), &scriptedProcessor{}, store)

	n, err := orch.CleanupFailedVideos()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.VideoStatusPending, store.status(1))
	assert.Equal(t, model.VideoStatusCompleted, store.status(2))
}
