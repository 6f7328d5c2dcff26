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
// implements the File Service client that turns a local video file into a
// remotely addressable handle.
//
// Logic Flow:
//  1. The local file is submitted with UploadFileFromPath.
//  2. The remote file enters a PROCESSING state; the client polls GetFile at
//     a fixed interval until the state settles to ACTIVE or FAILED.
//  3. Coarse progress milestones are reported through an optional sink:
//     10% on submit, 50% once the service accepted the file, 70% while
//     polling, 100% on ready.
//  4. Release deletes the remote artifact. It is best-effort: a cleanup
//     failure is logged and never escalated, because it must not mask the
//     outcome of the generation work the handle was used for.
//
// The poll loop checks the context between polls and enforces a configured
// timeout, so a stuck remote file cannot stall a job indefinitely.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/h2non/filetype"

	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

// Sentinel errors for the distinct upload failure modes. Callers branch on
// these to decide whether a video is retryable.
var (
	ErrVideoNotFound          = errors.New("video file not found")
	ErrRemoteProcessingFailed = errors.New("remote service failed to process the video")
	ErrUploadTimeout          = errors.New("timed out waiting for remote video processing")
)

// FileAPI is the slice of the genai client used by the File Service client.
// *genai.Client satisfies it; tests substitute a fake.
type FileAPI interface {
	UploadFileFromPath(ctx context.Context, path string, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// FileServiceClient uploads local videos to the Generative AI File Service,
// waits for them to become usable, and deletes them afterward. It keeps no
// state between calls.
type FileServiceClient struct {
	api           FileAPI
	pollInterval  time.Duration
	uploadTimeout time.Duration
}

// NewFileServiceClient builds a client from the video configuration. A zero
// poll interval defaults to the service's documented 2-second cadence; a
// zero timeout means no deadline beyond the context's own.
func NewFileServiceClient(api FileAPI, cfg VideoConfig) *FileServiceClient {
	pollInterval := 2 * time.Second
	if cfg.UploadPollSeconds > 0 {
		pollInterval = time.Duration(cfg.UploadPollSeconds) * time.Second
	}
	var uploadTimeout time.Duration
	if cfg.UploadTimeoutSeconds > 0 {
		uploadTimeout = time.Duration(cfg.UploadTimeoutSeconds) * time.Second
	}
	return &FileServiceClient{api: api, pollInterval: pollInterval, uploadTimeout: uploadTimeout}
}

// Upload submits the file at path to the File Service and blocks until the
// remote copy is ready for use in generation calls. The returned handle is
// valid until Release is called. sink may be nil.
func (c *FileServiceClient) Upload(ctx context.Context, path string, sink model.ProgressFunc) (*genai.File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, path)
	}

	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	report := func(pct int, msg string) {
		if sink != nil {
			sink(pct, msg)
		}
	}

	report(10, "Starting video upload...")

	file, err := c.api.UploadFileFromPath(ctx, path, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    detectVideoMIMEType(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload video to File Service: %w", err)
	}

	report(50, "Video uploaded, processing...")

	for file.State == genai.FileStateProcessing {
		report(70, "Processing video...")
		select {
		case <-ctx.Done():
			// The remote copy will never be consumed; drop it before bailing.
			c.Release(context.WithoutCancel(ctx), file)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrUploadTimeout
			}
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if file, err = c.api.GetFile(ctx, file.Name); err != nil {
			return nil, fmt.Errorf("failed to poll remote video state: %w", err)
		}
	}

	if file.State == genai.FileStateFailed {
		c.Release(context.WithoutCancel(ctx), file)
		return nil, ErrRemoteProcessingFailed
	}

	report(100, "Video ready for processing")
	return file, nil
}

// Release deletes the remote artifact behind the handle. Failures are logged
// and swallowed: cleanup is non-fatal and must never override the primary
// result of a generation request. Calling Release more than once, or with a
// nil handle, is safe.
func (c *FileServiceClient) Release(ctx context.Context, file *genai.File) {
	if file == nil {
		return
	}
	if err := c.api.DeleteFile(ctx, file.Name); err != nil {
		slog.Warn("failed to delete remote video file", "file", file.Name, "error", err)
	}
}

// detectVideoMIMEType sniffs the MIME type from the file's magic bytes,
// falling back to a generic video type when the header is unrecognized.
func detectVideoMIMEType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "video/mp4"
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 261)
	n, _ := f.Read(head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "video/mp4"
	}
	return kind.MIME.Value
}
