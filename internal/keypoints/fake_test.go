package keypoints

import (
	"context"
	"sync"

	"globalsearch/internal/llm"
)

type fakeClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []llm.Request
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	content := ""
	if len(f.responses) > 0 {
		content = f.responses[0]
		f.responses = f.responses[1:]
	}
	return &llm.Response{Content: content}, nil
}

func (f *fakeClient) Provider() llm.Provider { return "fake" }

func (f *fakeClient) Model() string { return "fake-model" }
