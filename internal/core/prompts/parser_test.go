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
	"testing"

	"github.com/zeebo/assert"
)

func TestParseCleanJSONResponse(t *testing.T) {
	raw := `{"prompts": ["a neon city in the rain", "a quiet mountain lake at dawn"]}`
	out := ParseBatchResponse(raw, 2)
	assert.Equal(t, 2, len(out))
	assert.Equal(t, "a neon city in the rain", out[0])
	assert.Equal(t, "a quiet mountain lake at dawn", out[1])
}

func TestParseJSONWithCodeFenceAlreadyStripped(t *testing.T) {
	// Upstream response handling strips markdown fences before parsing,
	// so the parser only ever sees bare JSON or prose.
	raw := "{\n  \"prompts\": [\"stormy ocean, oil painting style\"]\n}"
	out := ParseBatchResponse(raw, 1)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "stormy ocean, oil painting style", out[0])
}

func TestParseJSONEmbeddedInProse(t *testing.T) {
	raw := `Here are your prompts!

{"prompts": ["first prompt", "second prompt", "third prompt"]}

Let me know if you want more.`
	out := ParseBatchResponse(raw, 3)
	assert.Equal(t, 3, len(out))
	assert.Equal(t, "second prompt", out[1])
}

func TestParseNumberedListFallback(t *testing.T) {
	raw := `Sure, here they are:
1. "a fox in a snowy forest"
2. 'an astronaut floating above earth'
3. a lighthouse in heavy fog`
	out := ParseBatchResponse(raw, 3)
	assert.Equal(t, 3, len(out))
	assert.Equal(t, "a fox in a snowy forest", out[0])
	assert.Equal(t, "an astronaut floating above earth", out[1])
	assert.Equal(t, "a lighthouse in heavy fog", out[2])
}

func TestParseUnstructuredTextBecomesSinglePrompt(t *testing.T) {
	raw := "  a single unlabeled prompt describing the scene  "
	out := ParseBatchResponse(raw, 3)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "a single unlabeled prompt describing the scene", out[0])
}

func TestParseTruncatesOverDelivery(t *testing.T) {
	raw := `{"prompts": ["one", "two", "three", "four", "five"]}`
	out := ParseBatchResponse(raw, 3)
	assert.Equal(t, 3, len(out))
	assert.Equal(t, "three", out[2])
}

func TestParseNeverPadsUnderDelivery(t *testing.T) {
	raw := `{"prompts": ["only one came back"]}`
	out := ParseBatchResponse(raw, 5)
	assert.Equal(t, 1, len(out))
}

func TestParseEmptyResponse(t *testing.T) {
	assert.Equal(t, 0, len(ParseBatchResponse("", 3)))
	assert.Equal(t, 0, len(ParseBatchResponse("   \n\t ", 3)))
}

func TestParseJSONWithBlankEntries(t *testing.T) {
	raw := `{"prompts": ["  ", "kept prompt", ""]}`
	out := ParseBatchResponse(raw, 3)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "kept prompt", out[0])
}

func TestParseMalformedJSONFallsThrough(t *testing.T) {
	// Broken JSON with a numbered list further down should still recover
	// the listed prompts.
	raw := `{"prompts": ["unterminated
1. recovered from the list`
	out := ParseBatchResponse(raw, 2)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "recovered from the list", out[0])
}
