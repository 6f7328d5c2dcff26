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

// Package model defines the core data structures for the application. This
// file contains the structs persisted to the local SQLite database: queued
// videos and the prompt rows generated for them.
package model

import "time"

// Video statuses. A video's status is mutated exclusively by the generation
// orchestrator during a job: pending/error -> processing -> completed|error.
const (
	VideoStatusPending    = "pending"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusError      = "error"
)

// Prompt row statuses.
const (
	PromptStatusGenerated = "generated"
)

// Video is one queued local video file. PromptCount and CopiedCount are
// read-side aggregates filled in by list queries; they are not columns the
// writer touches.
type Video struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Filepath    string    `json:"filepath"`
	Filesize    int64     `json:"filesize"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PromptCount int       `json:"prompt_count"`
	CopiedCount int       `json:"copied_count"`
}

// Prompt is one generated prompt text, tagged with the generation
// parameters that produced it. Text is always non-empty and trimmed;
// whitespace-only model outputs are discarded before they reach the store.
type Prompt struct {
	ID              int64     `json:"id"`
	VideoID         int64     `json:"video_id"`
	PromptText      string    `json:"prompt_text"`
	ComplexityLevel int       `json:"complexity_level"`
	AspectRatio     string    `json:"aspect_ratio"`
	VariationLevel  int       `json:"variation_level"`
	Status          string    `json:"status"`
	IsCopied        bool      `json:"is_copied"`
	CreatedAt       time.Time `json:"created_at"`
}
