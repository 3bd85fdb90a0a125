// Package modeladaptertest provides a scripted Adapter fake for
// tests, avoiding any dependency on a live VLM server.
package modeladaptertest

import (
	"context"
	"sync"

	"github.com/prismlabs/prism/pkg/modeladapter"
)

// Call records one Generate invocation.
type Call struct {
	SystemPrompt string
	UserPrompt   string
	Params       modeladapter.DecodingParams
}

// Fake returns canned responses in call order, or the last response
// repeatedly once the queue is drained.
type Fake struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []Call
}

// New returns a Fake that will answer Generate calls with responses,
// in order.
func New(responses ...string) *Fake {
	return &Fake{Responses: responses}
}

func (f *Fake) Generate(_ context.Context, systemPrompt, userPrompt string, _ []byte, params modeladapter.DecodingParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Params: params})

	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := len(f.Calls) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

var _ modeladapter.Adapter = (*Fake)(nil)
