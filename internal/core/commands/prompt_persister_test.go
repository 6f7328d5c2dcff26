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

package commands

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/video-prompt-studio/internal/core/cor"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

type savedPrompt struct {
	videoID    int64
	text       string
	complexity int
	aspect     string
	variation  int
}

type fakePromptStore struct {
	saved    []savedPrompt
	failText string // inserts of this exact text error out
}

func (f *fakePromptStore) AddPrompt(videoID int64, text string, complexityLevel int, aspectRatio string, variationLevel int) (int64, error) {
	if text == f.failText && f.failText != "" {
		return 0, fmt.Errorf("scripted insert failure")
	}
	f.saved = append(f.saved, savedPrompt{videoID, text, complexityLevel, aspectRatio, variationLevel})
	return int64(len(f.saved)), nil
}

func newPersisterContext(generated []string) cor.Context {
	chCtx := cor.NewBaseContext(context.Background())
	chCtx.Add(cor.CtxIn, generated)
	chCtx.Add(GetVideoParameterName(), &model.Video{ID: 42, Filename: "clip.mp4"})
	chCtx.Add(GetGenerationParamsParameterName(), &model.GenerationParameters{
		ComplexityLevel: 3, AspectRatio: "9:16", VariationLevel: 2})
	return chCtx
}

func TestPersisterSavesPromptsWithParameters(t *testing.T) {
	store := &fakePromptStore{}
	persister := NewPromptPersister("t-prompt-persister", store)

	chCtx := newPersisterContext([]string{"first prompt", "  second prompt  ", ""})
	persister.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	require.Equal(t, 2, len(store.saved))
	assert.Equal(t, int64(42), store.saved[0].videoID)
	assert.Equal(t, "second prompt", store.saved[1].text)
	assert.Equal(t, 3, store.saved[0].complexity)
	assert.Equal(t, "9:16", store.saved[0].aspect)
	assert.Equal(t, 2, store.saved[0].variation)
	assert.Equal(t, 2, chCtx.Get(GetPersistedCountParameterName()))
}

func TestPersisterSkipsFailedInsert(t *testing.T) {
	store := &fakePromptStore{failText: "bad prompt"}
	persister := NewPromptPersister("t-prompt-persister", store)

	chCtx := newPersisterContext([]string{"good prompt", "bad prompt", "another good one"})
	persister.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, 2, len(store.saved))
	assert.Equal(t, 2, chCtx.Get(GetPersistedCountParameterName()))
}

func TestPersisterReportsZeroWhenNothingLands(t *testing.T) {
	store := &fakePromptStore{failText: "only prompt"}
	persister := NewPromptPersister("t-prompt-persister", store)

	chCtx := newPersisterContext([]string{"only prompt"})
	persister.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, 0, chCtx.Get(GetPersistedCountParameterName()))
}
