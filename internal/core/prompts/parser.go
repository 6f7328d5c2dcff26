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

package prompts

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// batchResponse is the JSON shape the model is instructed to reply with.
type batchResponse struct {
	Prompts []string `json:"prompts"`
}

// embeddedJSONPattern finds a JSON object containing a "prompts" array inside
// a reply that wraps it in explanatory prose.
var embeddedJSONPattern = regexp.MustCompile(`(?s)\{.*?"prompts".*?\[.*?\].*?\}`)

// numberedLinePattern matches lines like `1. a futuristic city at dusk`.
var numberedLinePattern = regexp.MustCompile(`^\d+\.\s*`)

// ParseBatchResponse extracts prompt strings from a raw model reply. Models
// do not always honor the response format, so parsing degrades gracefully
// through four stages:
//
//  1. The whole reply as a JSON object with a "prompts" array.
//  2. A JSON object with a "prompts" array embedded in surrounding text.
//  3. A plain numbered list, one prompt per line.
//  4. The entire trimmed reply as a single prompt.
//
// The result is truncated to expected when the model over-delivers, and is
// never padded: callers see exactly what was usable. An empty or whitespace
// reply yields an empty slice.
func ParseBatchResponse(raw string, expected int) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}
	}

	if prompts, ok := parseJSONObject(trimmed); ok {
		return truncate(prompts, expected)
	}

	if match := embeddedJSONPattern.FindString(trimmed); match != "" {
		if prompts, ok := parseJSONObject(match); ok {
			slog.Debug("recovered prompts from JSON embedded in prose reply")
			return truncate(prompts, expected)
		}
	}

	if prompts := parseNumberedList(trimmed); len(prompts) > 0 {
		slog.Debug("recovered prompts from numbered list reply", "count", len(prompts))
		return truncate(prompts, expected)
	}

	slog.Warn("model reply did not match any structured format, using whole text as one prompt")
	return truncate([]string{trimmed}, expected)
}

// parseJSONObject attempts a strict decode of text into the expected
// response shape. It reports false when the decode fails or the prompts
// array contains nothing usable.
func parseJSONObject(text string) ([]string, bool) {
	var decoded batchResponse
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, false
	}
	cleaned := make([]string, 0, len(decoded.Prompts))
	for _, p := range decoded.Prompts {
		if s := strings.TrimSpace(p); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, false
	}
	return cleaned, true
}

// parseNumberedList collects lines of the form "N. text", stripping the
// numeric prefix and any quotes wrapping the prompt text.
func parseNumberedList(text string) []string {
	var prompts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !numberedLinePattern.MatchString(line) {
			continue
		}
		prompt := numberedLinePattern.ReplaceAllString(line, "")
		prompt = strings.Trim(prompt, `"'`)
		prompt = strings.TrimSpace(prompt)
		if prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

func truncate(prompts []string, expected int) []string {
	if expected > 0 && len(prompts) > expected {
		return prompts[:expected]
	}
	return prompts
}
