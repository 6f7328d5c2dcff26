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

// This file defines the command at the heart of the pipeline: it asks the
// generative model to describe the uploaded video as a set of AI art prompts.
//
// A single request for a large number of prompts degrades reply quality and
// risks output-token limits, so the requested total is split into batches of
// at most the configured cap. Each batch is one multi-modal model call that
// pairs the File Service handle with a rendered instruction text. A failed
// batch is logged and skipped; whatever the remaining batches produce is
// still used. Only when every batch fails does the video itself fail.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/metric"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
	"github.com/promptpilot/video-prompt-studio/internal/core/prompts"
)

// Batch progress spans the range between the upload ceiling and 95. The
// final five points belong to persistence and completion.
const (
	batchProgressFloor = 25
	batchProgressSpan  = 70
)

// PromptBatchGenerator is a command that generates the requested number of
// prompts for the uploaded video in capped batches.
type PromptBatchGenerator struct {
	cor.BaseCommand
	config                   *cloud.Config
	generativeAIModel        cloud.TextContentGenerator
	builder                  *prompts.BatchRequestBuilder
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// NewPromptBatchGenerator is the constructor for the PromptBatchGenerator
// command. The model is typically a QuotaAwareGenerativeAIModel so batch
// calls respect the configured request rate.
func NewPromptBatchGenerator(
	name string,
	config *cloud.Config,
	generativeAIModel cloud.TextContentGenerator,
	builder *prompts.BatchRequestBuilder) *PromptBatchGenerator {

	out := &PromptBatchGenerator{
		BaseCommand:       *cor.NewBaseCommand(name),
		config:            config,
		generativeAIModel: generativeAIModel,
		builder:           builder}

	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.retry", out.GetName()))

	return out
}

// Execute runs the batched generation loop for the piped video.
func (g *PromptBatchGenerator) Execute(chCtx cor.Context) {
	video := chCtx.Get(g.GetInputParam()).(*model.Video)
	file := chCtx.Get(GetUploadedFileParameterName()).(*genai.File)
	params := chCtx.Get(GetGenerationParamsParameterName()).(*model.GenerationParameters)
	sink := progressSink(chCtx)

	total := params.PromptsPerVideo
	capPerBatch := params.BatchCap
	if capPerBatch <= 0 {
		capPerBatch = g.config.Generation.MaxPromptsPerBatch
	}
	numBatches := (total + capPerBatch - 1) / capPerBatch

	collected := make([]string, 0, total)
	for batch := 0; batch < numBatches; batch++ {
		remaining := total - len(collected)
		if remaining <= 0 {
			break
		}
		count := capPerBatch
		if remaining < count {
			count = remaining
		}

		request, err := g.buildRequest(count, params)
		if err != nil {
			g.GetErrorCounter().Add(chCtx.GetContext(), 1)
			chCtx.AddError(g.GetName(), err)
			return
		}

		raw, err := cloud.GenerateTextResponse(
			chCtx.GetContext(),
			g.geminiInputTokenCounter,
			g.geminiOutputTokenCounter,
			g.geminiRetryCounter,
			0,
			g.generativeAIModel,
			genai.FileData{URI: file.URI, MIMEType: file.MIMEType},
			genai.Text(request))
		if err != nil {
			// One bad batch does not sink the video.
			slog.Warn("prompt batch failed, continuing with remaining batches",
				"video", video.Filename,
				"batch", batch+1,
				"batches", numBatches,
				"error", err)
		} else {
			collected = append(collected, prompts.ParseBatchResponse(raw, count)...)
		}

		percent := batchProgressFloor + (batch+1)*batchProgressSpan/numBatches
		sink(percent, fmt.Sprintf("Generated batch %d of %d for %s", batch+1, numBatches, video.Filename))
	}

	// A shortfall, including a total one, is not a video failure. The video
	// finishes with whatever landed and the deficit shows up in the job
	// statistics as requested minus successful.
	if len(collected) == 0 {
		slog.Warn("all prompt batches failed, finishing video with no prompts",
			"video", video.Filename,
			"batches", numBatches)
	}

	if len(collected) > total {
		collected = collected[:total]
	}

	g.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(g.GetOutputParam(), collected)
}

// buildRequest renders the instruction text for one batch, resolving the
// numeric parameters into the prose descriptions the template expects.
func (g *PromptBatchGenerator) buildRequest(count int, params *model.GenerationParameters) (string, error) {
	complexity, err := g.config.ComplexityDescription(params.ComplexityLevel)
	if err != nil {
		return "", fmt.Errorf("invalid complexity level: %w", err)
	}
	variation, err := g.config.VariationInstruction(params.VariationLevel)
	if err != nil {
		return "", fmt.Errorf("invalid variation level: %w", err)
	}
	return g.builder.Render(prompts.BatchRequestSpec{
		Count:                 count,
		ComplexityDescription: complexity,
		AspectRatio:           params.AspectRatio,
		AspectDescription:     g.config.AspectDescription(params.AspectRatio),
		VariationInstruction:  variation,
	})
}
