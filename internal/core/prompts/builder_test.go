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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `Analyze this video and generate {{.Count}} distinct AI art prompts.
Complexity: {{.ComplexityDescription}}.
Aspect ratio: {{.AspectRatio}} ({{.AspectDescription}}).
{{.VariationInstruction}}
Respond with JSON: {"prompts": ["..."]}`

func TestRenderSubstitutesAllFields(t *testing.T) {
	builder, err := NewBatchRequestBuilder(testTemplate)
	require.NoError(t, err)

	text, err := builder.Render(BatchRequestSpec{
		Count:                 4,
		ComplexityDescription: "detailed and intricate",
		AspectRatio:           "16:9",
		AspectDescription:     "Widescreen format",
		VariationInstruction:  "Make each prompt substantially different.",
	})
	require.NoError(t, err)

	assert.True(t, strings.Contains(text, "generate 4 distinct"))
	assert.True(t, strings.Contains(text, "detailed and intricate"))
	assert.True(t, strings.Contains(text, "16:9 (Widescreen format)"))
	assert.True(t, strings.Contains(text, "substantially different"))
	assert.True(t, strings.Contains(text, `{"prompts": ["..."]}`))
}

func TestRenderRejectsNonPositiveCount(t *testing.T) {
	builder, err := NewBatchRequestBuilder(testTemplate)
	require.NoError(t, err)

	_, err = builder.Render(BatchRequestSpec{Count: 0})
	assert.Error(t, err)
}

func TestNewBuilderRejectsBrokenTemplate(t *testing.T) {
	_, err := NewBatchRequestBuilder("generate {{.Count prompts")
	assert.Error(t, err)
}
