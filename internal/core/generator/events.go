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

// Package generator orchestrates prompt generation jobs over the queue of
// pending videos. This file defines the event stream a job publishes while
// it runs, consumed by the websocket layer.
package generator

import "github.com/promptpilot/video-prompt-studio/internal/core/model"

// EventKind discriminates the payload of a JobEvent.
type EventKind string

const (
	// EventProgress reports incremental progress of a running job.
	EventProgress EventKind = "progress"
	// EventCompleted reports the terminal outcome of a job. Exactly one
	// is published per job.
	EventCompleted EventKind = "completed"
)

// JobEvent is a single notification from a generation job. Progress events
// may be dropped under backpressure; completion events are never dropped as
// long as the channel's buffer has room.
type JobEvent struct {
	Kind         EventKind      `json:"kind"`
	JobID        string         `json:"job_id"`
	Percent      int            `json:"percent"`
	Message      string         `json:"message"`
	CurrentVideo string         `json:"current_video,omitempty"`
	Success      bool           `json:"success"`
	Stats        model.JobStats `json:"stats"`
}
