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

package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
	"github.com/promptpilot/video-prompt-studio/internal/core/prompts"
)

var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70, 0x6D, 0x70, 0x34, 0x32}

type fakeUploader struct {
	failUpload bool
	uploads    int
	releases   int
}

func (f *fakeUploader) Upload(_ context.Context, path string, sink model.ProgressFunc) (*genai.File, error) {
	f.uploads++
	if f.failUpload {
		return nil, fmt.Errorf("scripted upload failure")
	}
	if sink != nil {
		sink(100, "upload complete")
	}
	return &genai.File{Name: "files/" + filepath.Base(path), URI: "https://files.example/x", MIMEType: "video/mp4"}, nil
}

func (f *fakeUploader) Release(_ context.Context, _ *genai.File) {
	f.releases++
}

type fakeModel struct {
	fail  bool
	calls int
	reply string
}

func (f *fakeModel) GenerateContent(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("scripted model failure")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
		}},
	}, nil
}

type fakeStore struct {
	prompts []string
}

func (f *fakeStore) AddPrompt(_ int64, text string, _ int, _ string, _ int) (int64, error) {
	f.prompts = append(f.prompts, text)
	return int64(len(f.prompts)), nil
}

func workflowTestConfig() *cloud.Config {
	cfg := cloud.NewConfig()
	cfg.Video = cloud.VideoConfig{SupportedFormats: []string{".mp4"}, MaxFileSizeMB: 10}
	cfg.Generation.MaxPromptsPerBatch = 5
	cfg.Generation.ComplexityLevels = []string{"simple", "moderate", "detailed"}
	cfg.Generation.VariationInstructions = map[string]string{"1": "Keep prompts related."}
	cfg.Generation.AspectRatios = map[string]string{"16:9": "Widescreen format"}
	return cfg
}

func newTestWorkflow(t *testing.T, uploader *fakeUploader, gen *fakeModel, store *fakeStore) *VideoPromptWorkflow {
	t.Helper()
	builder, err := prompts.NewBatchRequestBuilder("COUNT:{{.Count}}")
	require.NoError(t, err)
	return NewVideoPromptWorkflow(workflowTestConfig(), uploader, gen, builder, store)
}

func writeTestVideo(t *testing.T) *model.Video {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	content := make([]byte, 4096)
	copy(content, mp4Header)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return &model.Video{ID: 1, Filename: "clip.mp4", Filepath: path, Status: model.VideoStatusProcessing}
}

func defaultParams() *model.GenerationParameters {
	return &model.GenerationParameters{
		PromptsPerVideo: 2, ComplexityLevel: 1, AspectRatio: "16:9", VariationLevel: 1}
}

func TestProcessHappyPath(t *testing.T) {
	uploader := &fakeUploader{}
	gen := &fakeModel{reply: `{"prompts": ["one", "two"]}`}
	store := &fakeStore{}
	wf := newTestWorkflow(t, uploader, gen, store)

	var lastPercent int
	count, err := wf.Process(context.Background(), writeTestVideo(t), defaultParams(),
		func(percent int, _ string) { lastPercent = percent })

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"one", "two"}, store.prompts)
	assert.Equal(t, 100, lastPercent)
	assert.Equal(t, 1, uploader.uploads)
	assert.Equal(t, 1, uploader.releases)
}

func TestProcessGenerationFailureCompletesWithZeroPrompts(t *testing.T) {
	uploader := &fakeUploader{}
	gen := &fakeModel{fail: true}
	store := &fakeStore{}
	wf := newTestWorkflow(t, uploader, gen, store)

	count, err := wf.Process(context.Background(), writeTestVideo(t), defaultParams(), nil)

	// Generation failures stay below the video level: the video finishes
	// with zero prompts rather than an error, and the remote copy is still
	// deleted.
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, len(store.prompts))
	assert.Equal(t, 1, uploader.releases)
}

func TestProcessUploadFailureSkipsModel(t *testing.T) {
	uploader := &fakeUploader{failUpload: true}
	gen := &fakeModel{reply: `{"prompts": ["one"]}`}
	store := &fakeStore{}
	wf := newTestWorkflow(t, uploader, gen, store)

	_, err := wf.Process(context.Background(), writeTestVideo(t), defaultParams(), nil)

	require.Error(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, uploader.releases)
}

func TestProcessValidationFailureSkipsUpload(t *testing.T) {
	uploader := &fakeUploader{}
	gen := &fakeModel{}
	store := &fakeStore{}
	wf := newTestWorkflow(t, uploader, gen, store)

	missing := &model.Video{ID: 2, Filename: "gone.mp4", Filepath: filepath.Join(t.TempDir(), "gone.mp4")}
	_, err := wf.Process(context.Background(), missing, defaultParams(), nil)

	require.Error(t, err)
	assert.Equal(t, 0, uploader.uploads)
}
