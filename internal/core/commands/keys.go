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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the video prompt
// pipeline. This file defines the canonical context keys the commands use to
// share values that live outside the chain's CtxIn/CtxOut piping.
package commands

// GetVideoParameterName returns the key under which the workflow stores the
// video record being processed. Commands that need the record after the
// piped value has changed shape read it from here.
func GetVideoParameterName() string {
	return "__VIDEO__"
}

// GetUploadedFileParameterName returns the key under which the MediaUpload
// command stores the remote file handle returned by the File Service.
func GetUploadedFileParameterName() string {
	return "__UPLOADED_FILE__"
}

// GetGenerationParamsParameterName returns the key under which the workflow
// stores the user's generation parameters for the current job.
func GetGenerationParamsParameterName() string {
	return "__GENERATION_PARAMS__"
}

// GetProgressFuncParameterName returns the key under which the workflow
// stores the per-video progress callback. Commands treat a missing or nil
// callback as "no progress reporting".
func GetProgressFuncParameterName() string {
	return "__PROGRESS_FUNC__"
}

// GetPersistedCountParameterName returns the key under which the
// PromptPersister command stores the number of prompts it wrote.
func GetPersistedCountParameterName() string {
	return "__PERSISTED_COUNT__"
}
