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

// This file defines the tail command of the per-video pipeline: it writes
// the generated prompt texts to the database, tagged with the generation
// parameters so the UI can display how each prompt was produced.
package commands

import (
	"log/slog"
	"strings"

	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// PromptStore is the slice of the persistence layer this command needs.
type PromptStore interface {
	AddPrompt(videoID int64, text string, complexityLevel int, aspectRatio string, variationLevel int) (int64, error)
}

// PromptPersister is a command that saves generated prompts for the video
// being processed.
type PromptPersister struct {
	cor.BaseCommand
	store PromptStore
}

// NewPromptPersister is the constructor for the PromptPersister command.
func NewPromptPersister(name string, store PromptStore) *PromptPersister {
	return &PromptPersister{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

// Execute inserts each non-empty prompt text. Individual insert failures are
// logged and skipped so one bad row does not discard the rest of the batch;
// the persisted count output tells the caller how many actually landed.
func (p *PromptPersister) Execute(chCtx cor.Context) {
	generated := chCtx.Get(p.GetInputParam()).([]string)
	video := chCtx.Get(GetVideoParameterName()).(*model.Video)
	params := chCtx.Get(GetGenerationParamsParameterName()).(*model.GenerationParameters)

	persisted := 0
	for _, text := range generated {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, err := p.store.AddPrompt(video.ID, text, params.ComplexityLevel, params.AspectRatio, params.VariationLevel); err != nil {
			slog.Warn("failed to persist prompt", "video", video.Filename, "error", err)
			continue
		}
		persisted++
	}

	if persisted == 0 {
		slog.Warn("no prompts persisted for video", "video", video.Filename)
	}

	p.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(GetPersistedCountParameterName(), persisted)
	chCtx.Add(p.GetOutputParam(), persisted)
}
