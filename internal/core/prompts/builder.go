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

// Package prompts renders the text instructions sent to the generative model
// alongside an uploaded video, and parses the model's replies back into
// individual prompt strings.
package prompts

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
)

// BatchRequestSpec carries the values substituted into the batch request
// template for a single model call.
type BatchRequestSpec struct {
	// Count is the number of prompts requested in this batch.
	Count int
	// ComplexityDescription is the prose description of the chosen
	// complexity level, e.g. "detailed and intricate".
	ComplexityDescription string
	// AspectRatio is the raw ratio string, e.g. "16:9".
	AspectRatio string
	// AspectDescription is the prose description of the ratio, e.g.
	// "Widescreen format".
	AspectDescription string
	// VariationInstruction tells the model how different the prompts in
	// the batch should be from one another.
	VariationInstruction string
}

// BatchRequestBuilder renders batch prompt requests from a configured
// template. Build a single instance at startup and share it; it is safe for
// concurrent use once constructed.
type BatchRequestBuilder struct {
	template *template.Template
}

// NewBatchRequestBuilder compiles the template text, normally sourced from
// the prompt section of the application config.
func NewBatchRequestBuilder(templateText string) (*BatchRequestBuilder, error) {
	tmpl, err := template.New("batch-request").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch request template: %w", err)
	}
	return &BatchRequestBuilder{template: tmpl}, nil
}

// NewBatchRequestBuilderFromConfig is a convenience constructor that pulls
// the template text out of the application config.
func NewBatchRequestBuilderFromConfig(config *cloud.Config) (*BatchRequestBuilder, error) {
	return NewBatchRequestBuilder(config.PromptTemplates.BatchPrompt)
}

// Render produces the instruction text for one batch request.
func (b *BatchRequestBuilder) Render(spec BatchRequestSpec) (string, error) {
	if spec.Count <= 0 {
		return "", fmt.Errorf("batch request count must be positive, got %d", spec.Count)
	}
	var out bytes.Buffer
	if err := b.template.Execute(&out, spec); err != nil {
		return "", fmt.Errorf("failed to render batch request: %w", err)
	}
	return out.String(), nil
}
