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

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/generator"
	"github.com/promptpilot/video-prompt-studio/internal/core/prompts"
	"github.com/promptpilot/video-prompt-studio/internal/core/services"
	"github.com/promptpilot/video-prompt-studio/internal/core/workflow"
)

// promptWriterAgent is the logical name of the generation model in the
// agent_models config table.
const promptWriterAgent = "prompt-writer"

// StateManager holds the shared components for the application.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	videoService *services.VideoService
	orchestrator *generator.Orchestrator
	hub          *eventHub
}

var state = &StateManager{}

// SetupOS points the config loader at the configs directory unless the
// caller already set the environment.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the application configuration once and caches it.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// InitState initializes the application's dependency graph: cloud clients,
// the local database, the per-video workflow, and the job orchestrator.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		log.Fatalf("failed to create cloud service clients: %v\n", err)
	}
	state.cloud = cloudClients

	videoService, err := services.NewVideoService(config.Database.Filename)
	if err != nil {
		log.Fatalf("failed to open the video database: %v\n", err)
	}
	state.videoService = videoService

	// A crash mid-job strands videos in processing. Return them to the
	// queue before accepting new work.
	if reset, err := videoService.ResetProcessingVideos(); err != nil {
		slog.Error("failed to reset stranded videos", "error", err)
	} else if reset > 0 {
		slog.Info("returned stranded videos to the pending queue", "videos", reset)
	}

	builder, err := prompts.NewBatchRequestBuilderFromConfig(config)
	if err != nil {
		log.Fatalf("failed to compile the batch prompt template: %v\n", err)
	}

	agentModel, ok := cloudClients.AgentModels[promptWriterAgent]
	if !ok {
		log.Fatalf("no %q model configured under [agent_models]\n", promptWriterAgent)
	}

	pipeline := workflow.NewVideoPromptWorkflow(config, cloudClients.FileService, agentModel, builder, videoService)
	state.orchestrator = generator.NewOrchestrator(config, pipeline, videoService)

	state.hub = newEventHub(state.orchestrator.Events())
	go state.hub.run()
}
