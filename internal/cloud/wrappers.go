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
// implements a decorator around the standard generative model that adds
// client-side rate limiting, keeping the application inside the service's
// per-minute request quota without every caller having to think about it.
package cloud

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
)

// QuotaAwareGenerativeAIModel wraps a genai.GenerativeModel with a token
// bucket sized to the configured requests-per-minute quota. All generation
// calls block on the limiter before reaching the network.
type QuotaAwareGenerativeAIModel struct {
	*genai.GenerativeModel
	limiter *rate.Limiter
}

// NewQuotaAwareModel wraps the given model with a limiter that admits
// requestsPerMinute calls per minute with a burst of one. A zero or negative
// quota disables limiting.
func NewQuotaAwareModel(wrapped *genai.GenerativeModel, requestsPerMinute int) *QuotaAwareGenerativeAIModel {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &QuotaAwareGenerativeAIModel{GenerativeModel: wrapped, limiter: limiter}
}

// GenerateContent waits for quota headroom, then delegates to the wrapped
// model. Waiting respects context cancellation, so a stopped job does not
// sit in the limiter queue.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return q.GenerativeModel.GenerateContent(ctx, parts...)
}
