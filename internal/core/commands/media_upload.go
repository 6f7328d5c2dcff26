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

// This file defines the command that bridges a local video file and the
// generative model: it uploads the file to the File Service and waits for the
// remote copy to become active, because the model can only analyze videos
// through a File Service handle. The handle is placed in the context for the
// batch generation step, and a cleanup hook is registered so the remote copy
// is deleted when the workflow finishes, whether or not it succeeded.
package commands

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// uploadProgressCeiling is where upload progress tops out on the per-video
// scale. The batch generation step owns the rest of the range.
const uploadProgressCeiling = 25

// Uploader is the slice of the File Service client this command needs.
// Declared here so tests can substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, path string, sink model.ProgressFunc) (*genai.File, error)
	Release(ctx context.Context, file *genai.File)
}

// MediaUpload is a command that uploads the piped video to the File Service
// and waits for it to become active.
type MediaUpload struct {
	cor.BaseCommand
	uploader Uploader
}

// NewMediaUpload is the constructor for the MediaUpload command.
func NewMediaUpload(name string, uploader Uploader) *MediaUpload {
	return &MediaUpload{BaseCommand: *cor.NewBaseCommand(name), uploader: uploader}
}

// Execute uploads the video and stores the resulting file handle under the
// canonical key for downstream commands.
func (m *MediaUpload) Execute(chCtx cor.Context) {
	video := chCtx.Get(m.GetInputParam()).(*model.Video)
	sink := progressSink(chCtx)

	// The upload client reports 0 to 100 for its own lifecycle. Rescale
	// that into the slice of the per-video range the upload step owns.
	scaled := func(percent int, message string) {
		sink(percent*uploadProgressCeiling/100, message)
	}

	file, err := m.uploader.Upload(chCtx.GetContext(), video.Filepath, scaled)
	if err != nil {
		m.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(m.GetName(), fmt.Errorf("failed to upload %s to the File Service: %w", video.Filename, err))
		return
	}

	// Release must run even when a later command fails or the job is
	// cancelled, so it is registered as a context cleanup hook rather
	// than left to a tail command the chain might never reach. The
	// detached context lets the delete proceed after cancellation.
	releaseCtx := context.WithoutCancel(chCtx.GetContext())
	chCtx.AddCleanup(func() {
		m.uploader.Release(releaseCtx, file)
	})

	m.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(GetUploadedFileParameterName(), file)
	chCtx.Add(m.GetOutputParam(), video)
}

// progressSink pulls the job's progress callback out of the context,
// returning a no-op when none was provided.
func progressSink(chCtx cor.Context) model.ProgressFunc {
	if fn, ok := chCtx.Get(GetProgressFuncParameterName()).(model.ProgressFunc); ok && fn != nil {
		return fn
	}
	return func(int, string) {}
}
