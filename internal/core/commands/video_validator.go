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

// This file defines the command that guards the head of the per-video
// pipeline. It confirms the queued video still exists on disk and is
// something the File Service will accept before any network call is made.
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// headerSniffLength is the number of leading bytes filetype needs to
// identify a container format.
const headerSniffLength = 261

// VideoValidator is a command that checks a queued video against the
// configured format and size limits.
type VideoValidator struct {
	cor.BaseCommand
	config cloud.VideoConfig
}

// NewVideoValidator is the constructor for the VideoValidator command.
func NewVideoValidator(name string, config cloud.VideoConfig) *VideoValidator {
	return &VideoValidator{BaseCommand: *cor.NewBaseCommand(name), config: config}
}

// Execute validates the piped video record. On any failure it records an
// error on the context, which stops the chain for this video.
func (v *VideoValidator) Execute(context cor.Context) {
	video := context.Get(v.GetInputParam()).(*model.Video)

	info, err := os.Stat(video.Filepath)
	if err != nil {
		v.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(v.GetName(), fmt.Errorf("video file not found: %s: %w", video.Filepath, err))
		return
	}

	ext := strings.ToLower(filepath.Ext(video.Filepath))
	if !v.isSupportedFormat(ext) {
		v.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(v.GetName(), fmt.Errorf("unsupported video format %q for %s", ext, video.Filename))
		return
	}

	if maxBytes := v.config.MaxFileSizeMB * 1024 * 1024; maxBytes > 0 && info.Size() > maxBytes {
		v.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(v.GetName(), fmt.Errorf(
			"video %s is %d bytes, exceeding the %d MB limit", video.Filename, info.Size(), v.config.MaxFileSizeMB))
		return
	}

	if err := v.checkHeader(video.Filepath); err != nil {
		v.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(v.GetName(), err)
		return
	}

	v.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(v.GetOutputParam(), video)
}

func (v *VideoValidator) isSupportedFormat(ext string) bool {
	for _, allowed := range v.config.SupportedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// checkHeader sniffs the file's magic bytes. A file whose header identifies
// a non-video type is rejected; an unrecognized header is allowed through
// since the extension check already passed and some valid containers are
// not in filetype's matcher set.
func (v *VideoValidator) checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open video for inspection: %w", err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, headerSniffLength)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read video header: %w", err)
	}
	header = header[:n]

	kind, _ := filetype.Match(header)
	if kind == filetype.Unknown {
		return nil
	}
	if !filetype.IsVideo(header) {
		return fmt.Errorf("file content is %s, not a video", kind.MIME.Value)
	}
	return nil
}
