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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients used to talk to the Generative AI
// service. This file centralizes all configuration-related structs so the
// application's tunable parameters live in one place.
//
// Structs:
//   - GenAIModel: Tuning parameters for the generative model.
//   - VideoConfig: Constraints applied to local video files and uploads.
//   - GenerationConfig: Prompt generation defaults, caps, and style tables.
//   - PromptTemplates: Text templates for the instructions sent to the model.
//   - Database: Local SQLite settings.
//   - Config: The top-level aggregate loaded from the TOML files.
package cloud

import (
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// DefaultSafetySettings defines the content safety thresholds applied to the
// generative model. They are non-restrictive: the input videos are the user's
// own local files and the output is descriptive prompt text.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockNone,
	},
}

// GenAIModel holds the tuning parameters for the generative model used to
// produce prompts. The API key itself is never stored here; it is resolved
// from the environment (see ResolveAPIKey).
type GenAIModel struct {
	Model                string  `toml:"model"`                   // The model name, e.g. "gemini-1.5-flash".
	SystemInstructions   string  `toml:"system_instructions"`    // Optional system instructions for the model.
	Temperature          float32 `toml:"temperature"`             // Sampling temperature.
	TopP                 float32 `toml:"top_p"`                   // Nucleus sampling parameter.
	TopK                 int32   `toml:"top_k"`                   // Top-K sampling parameter.
	MaxTokens            int32   `toml:"max_tokens"`              // Maximum output tokens per call.
	OutputFormat         string  `toml:"output_format"`           // Desired response MIME type, e.g. "text/plain".
	MaxRequestsPerMinute int     `toml:"max_requests_per_minute"` // Client-side rate limit for generation calls.
}

// VideoConfig holds the constraints applied to local video files before they
// are shipped to the File Service, plus the upload poll policy.
type VideoConfig struct {
	SupportedFormats     []string `toml:"supported_formats"`      // Extension allow-list, lower case with dot (".mp4").
	MaxFileSizeMB        int64    `toml:"max_file_size_mb"`       // Per-file size ceiling in megabytes.
	UploadPollSeconds    int      `toml:"upload_poll_seconds"`    // Interval between File Service state polls.
	UploadTimeoutSeconds int      `toml:"upload_timeout_seconds"` // Hard cap on one upload including remote processing.
}

// GenerationConfig holds prompt generation defaults, the per-call batch cap,
// and the style lookup tables keyed by level.
type GenerationConfig struct {
	DefaultPromptsPerVideo int               `toml:"default_prompts_per_video"`
	MinPromptsPerVideo     int               `toml:"min_prompts_per_video"`
	MaxPromptsPerVideo     int               `toml:"max_prompts_per_video"`
	MaxPromptsPerBatch     int               `toml:"max_prompts_per_batch"` // Max prompts obtainable from a single remote call.
	MinComplexityLevel     int               `toml:"min_complexity_level"`
	MaxComplexityLevel     int               `toml:"max_complexity_level"`
	ComplexityLevels       []string          `toml:"complexity_levels"` // Human descriptions, index 0 == level 1.
	MinVariationLevel      int               `toml:"min_variation_level"`
	MaxVariationLevel      int               `toml:"max_variation_level"`
	VariationInstructions  map[string]string `toml:"variation_instructions"`  // Keyed by the level as a string.
	AspectRatios           map[string]string `toml:"aspect_ratios"`           // Ratio -> human description.
	AvailableAspectRatios  []string          `toml:"available_aspect_ratios"` // The allow-list, in display order.
}

// PromptTemplates holds the text templates used to build instructions for the
// generative model. Templates use Go text/template syntax.
type PromptTemplates struct {
	BatchPrompt string `toml:"batch"` // Template for a multi-prompt batch request.
}

// Database holds local SQLite settings.
type Database struct {
	Filename       string `toml:"filename"`
	MinCleanupDays int    `toml:"min_cleanup_days"`
	MaxCleanupDays int    `toml:"max_cleanup_days"`
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It is the root container for all other config structs.
type Config struct {
	Application struct {
		Name       string `toml:"name"`
		ServerPort int    `toml:"server_port"`
	} `toml:"application"`
	AgentModels     map[string]GenAIModel `toml:"agent_models"` // Models keyed by a logical name (e.g. "prompt-writer").
	Video           VideoConfig           `toml:"video"`
	Generation      GenerationConfig      `toml:"generation"`
	PromptTemplates PromptTemplates       `toml:"prompt_templates"`
	Database        Database              `toml:"database"`
}

// NewConfig creates a new, initialized Config instance. The map fields must
// be initialized before the TOML decoder populates them.
func NewConfig() *Config {
	out := &Config{AgentModels: make(map[string]GenAIModel)}
	out.Generation.VariationInstructions = make(map[string]string)
	out.Generation.AspectRatios = make(map[string]string)
	return out
}

// ComplexityRange returns the inclusive valid range for the complexity level.
func (c *Config) ComplexityRange() (min, max int) {
	return c.Generation.MinComplexityLevel, c.Generation.MaxComplexityLevel
}

// VariationRange returns the inclusive valid range for the variation level.
func (c *Config) VariationRange() (min, max int) {
	return c.Generation.MinVariationLevel, c.Generation.MaxVariationLevel
}

// ComplexityDescription returns the human-readable description for a
// complexity level. Level 1 maps to the first entry of the configured table.
func (c *Config) ComplexityDescription(level int) (string, error) {
	idx := level - 1
	if idx < 0 || idx >= len(c.Generation.ComplexityLevels) {
		return "", fmt.Errorf("no complexity description configured for level %d", level)
	}
	return c.Generation.ComplexityLevels[idx], nil
}

// AspectDescription returns the human-readable description for an aspect
// ratio, falling back to a generic label for unknown ratios the way the
// generation UI always has.
func (c *Config) AspectDescription(ratio string) string {
	if desc, ok := c.Generation.AspectRatios[ratio]; ok {
		return desc
	}
	return "Standard format"
}

// VariationInstruction returns the strategy text for a variation level.
func (c *Config) VariationInstruction(level int) (string, error) {
	key := fmt.Sprintf("%d", level)
	instruction, ok := c.Generation.VariationInstructions[key]
	if !ok {
		return "", fmt.Errorf("no variation instruction configured for level %d", level)
	}
	return instruction, nil
}
