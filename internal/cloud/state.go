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
// initializes and holds the client objects the rest of the application
// depends on. It acts as a dependency injection container: a single
// ServiceClients struct is created at startup and passed explicitly to the
// components that need it, instead of each of them reaching for a
// process-wide singleton.
package cloud

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ServiceClients is the container for all clients that talk to the
// Generative AI service: the raw SDK client, the rate-limited generative
// models keyed by logical name, and the File Service client used for video
// uploads.
type ServiceClients struct {
	GenAIClient *genai.Client
	AgentModels map[string]*QuotaAwareGenerativeAIModel
	FileService *FileServiceClient
}

// Close releases the underlying client connections. Useful in tests and for
// controlled shutdowns; the root context normally manages the lifecycle.
func (c *ServiceClients) Close() {
	_ = c.GenAIClient.Close()
}

// NewCloudServiceClients initializes all Generative AI clients from the
// configuration. The API credential is resolved from the environment; a
// missing credential fails initialization here rather than on the first
// generation call mid-job.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	apiKey, err := ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	// Configure a generative model per agent entry and wrap each in the
	// quota-aware rate limiter.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey, values := range config.AgentModels {
		model := gc.GenerativeModel(values.Model)
		model.SetTemperature(values.Temperature)
		model.SetTopP(values.TopP)
		model.SetTopK(values.TopK)
		if values.MaxTokens > 0 {
			model.SetMaxOutputTokens(values.MaxTokens)
		}
		if values.SystemInstructions != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(values.SystemInstructions)},
			}
		}
		model.SafetySettings = DefaultSafetySettings
		if values.OutputFormat != "" {
			model.ResponseMIMEType = values.OutputFormat
		}
		agentModels[amKey] = NewQuotaAwareModel(model, values.MaxRequestsPerMinute)
	}

	return &ServiceClients{
		GenAIClient: gc,
		AgentModels: agentModels,
		FileService: NewFileServiceClient(gc, config.Video),
	}, nil
}
