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
// file holds the in-memory structures used while a generation job runs; none
// of them are persisted.
package model

// ProgressFunc receives coarse progress updates: a percentage in [0,100] and
// a human-readable status message. Percentages within one scope are
// monotonically non-decreasing.
type ProgressFunc func(percent int, message string)

// GenerationParameters are the style settings for one generation job. They
// are validated before a job starts and immutable for its duration.
type GenerationParameters struct {
	PromptsPerVideo int    `json:"prompts_per_video"`
	ComplexityLevel int    `json:"complexity_level"`
	AspectRatio     string `json:"aspect_ratio"`
	VariationLevel  int    `json:"variation_level"`
	// BatchCap is the maximum number of prompts obtainable from a single
	// remote generation call. Zero means "use the configured default".
	BatchCap int `json:"batch_cap,omitempty"`
}

// JobStats aggregates counters over one generation job. Counters are reset
// at job start, updated monotonically while it runs, and frozen at
// completion. SuccessfulPrompts never exceeds TotalPromptsRequested.
type JobStats struct {
	TotalVideos           int `json:"total_videos"`
	ProcessedVideos       int `json:"processed_videos"`
	TotalPromptsRequested int `json:"total_prompts_requested"`
	SuccessfulPrompts     int `json:"successful_prompts"`
	FailedVideos          int `json:"failed_videos"`
}
