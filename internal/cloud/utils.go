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

// Package cloud provides clients for the Generative AI service. This file
// contains general-purpose helpers supporting the package: hierarchical
// configuration loading (a base TOML file overlaid with a runtime-specific
// one), .env bootstrapping, API credential resolution, and a resilient
// wrapper for text generation calls.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"
)

const (
	ConfigFileBaseName  = ".env"              // Base name for configuration files (".env.toml").
	ConfigFileExtension = ".toml"             // Extension for configuration files.
	ConfigSeparator     = "."                 // Separator in config file names (".env.local.toml").
	EnvConfigFilePrefix = "VPS_CONFIG_PREFIX" // Env var naming the config directory.
	EnvConfigRuntime    = "VPS_RUNTIME"       // Env var naming the runtime context ("local", "test").
	EnvAPIKey           = "GENAI_API_KEY"     // Env var holding the Generative AI API key.
	MaxRetries          = 3                   // Max attempts for a failed generation call.
)

// ErrAPIKeyMissing is returned when no usable credential can be resolved from
// the environment. Job validation surfaces it before any state is mutated.
var ErrAPIKeyMissing = errors.New("GenAI API key not configured: set " + EnvAPIKey + " in the environment or .env file")

// fileExists reports whether a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadDotEnv loads a local .env file into the process environment if one is
// present. Missing files are not an error; the environment may already carry
// the credential.
func LoadDotEnv() {
	if fileExists(".env") {
		if err := godotenv.Load(); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		}
	}
}

// ResolveAPIKey returns the Generative AI API key from the environment.
// Placeholder values left over from a template .env are treated as missing.
func ResolveAPIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" || key == "your_api_key_here" {
		return "", ErrAPIKeyMissing
	}
	return key, nil
}

// LoadConfig provides hierarchical configuration loading. It first decodes a
// base configuration file and then overlays values from a runtime-specific
// file. The directory prefix and runtime name come from environment
// variables so tests can point at their own fixtures.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "local"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// Values in the runtime file overwrite the base configuration.
	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// TextContentGenerator is the narrow surface of a generative model needed to
// produce text. The quota-aware wrapper implements it; tests substitute fakes.
type TextContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GenerateTextResponse executes a multi-modal request against a generative
// model and flattens the response into plain text. It retries transient
// failures up to MaxRetries and records token usage on the given counters.
// Markdown code fences around JSON replies are stripped, since the model
// frequently wraps structured output in them.
func GenerateTextResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model TextContentGenerator,
	parts ...genai.Part) (value string, err error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		if tryCount < MaxRetries {
			retryCounter.Add(ctx, 1)
			return GenerateTextResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, parts...)
		}
		return "", err
	}

	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				builder.WriteString(fmt.Sprint(part))
			}
		}
	}
	value = strings.TrimSpace(builder.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value), nil
}
