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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. This file implements the
// per-video pipeline: validate the local file, upload it to the File
// Service, generate prompts in batches, and persist the results. The
// uploaded remote copy is always released when the pipeline finishes,
// whether it succeeded, failed, or was cancelled.
package workflow

import (
	goctx "context"
	"errors"
	"fmt"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/commands"
	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
	"github.com/promptpilot/video-prompt-studio/internal/core/prompts"
)

// VideoPromptWorkflow runs the full analysis pipeline for one video at a
// time. A single instance serves all jobs; per-video state lives in the
// chain context created for each Process call.
type VideoPromptWorkflow struct {
	chain cor.Chain
}

// NewVideoPromptWorkflow assembles the pipeline. The chain stops at the
// first failing command, and the upload command's cleanup hook guarantees
// the remote file is deleted regardless of where the chain stopped.
func NewVideoPromptWorkflow(
	config *cloud.Config,
	uploader commands.Uploader,
	generativeAIModel cloud.TextContentGenerator,
	builder *prompts.BatchRequestBuilder,
	store commands.PromptStore) *VideoPromptWorkflow {

	chain := cor.NewBaseChain("video-prompt-workflow").
		AddCommand(commands.NewVideoValidator("video-validator", config.Video)).
		AddCommand(commands.NewMediaUpload("media-upload", uploader)).
		AddCommand(commands.NewPromptBatchGenerator("prompt-batch-generator", config, generativeAIModel, builder)).
		AddCommand(commands.NewPromptPersister("prompt-persister", store))

	return &VideoPromptWorkflow{chain: chain}
}

// Process runs the pipeline for a single video and returns the number of
// prompts that were persisted. The progress callback receives percentages
// on a 0 to 100 scale for this video alone.
func (w *VideoPromptWorkflow) Process(
	ctx goctx.Context,
	video *model.Video,
	params *model.GenerationParameters,
	progress model.ProgressFunc) (persisted int, err error) {

	chCtx := cor.NewBaseContext(ctx)
	defer chCtx.Close()

	chCtx.Add(cor.CtxIn, video)
	chCtx.Add(commands.GetVideoParameterName(), video)
	chCtx.Add(commands.GetGenerationParamsParameterName(), params)
	if progress != nil {
		chCtx.Add(commands.GetProgressFuncParameterName(), progress)
	}

	w.chain.Execute(chCtx)

	if chCtx.HasErrors() {
		return 0, collectErrors(video, chCtx.GetErrors())
	}

	count, ok := chCtx.Get(commands.GetPersistedCountParameterName()).(int)
	if !ok {
		return 0, fmt.Errorf("pipeline for %s finished without a persisted count", video.Filename)
	}

	if progress != nil {
		progress(100, fmt.Sprintf("Finished %s with %d prompts", video.Filename, count))
	}
	return count, nil
}

// collectErrors flattens the chain's error map into a single error value.
func collectErrors(video *model.Video, errMap map[string]error) error {
	collected := make([]error, 0, len(errMap))
	for name, err := range errMap {
		collected = append(collected, fmt.Errorf("%s: %w", name, err))
	}
	return fmt.Errorf("processing %s failed: %w", video.Filename, errors.Join(collected...))
}
