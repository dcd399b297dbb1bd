package imitune

import (
	"context"
	"sync"

	domfeedback "github.com/kailas-cloud/imitune/internal/domain/feedback"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
	feedbackuc "github.com/kailas-cloud/imitune/internal/usecase/feedback"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, q domsearch.Query) ([]domsearch.Match, error)
}

func (m *mockSearchUC) Search(ctx context.Context, q domsearch.Query) ([]domsearch.Match, error) {
	return m.searchFn(ctx, q)
}

// --- feedbackUseCase mock ---

type mockFeedbackUC struct {
	submitFn func(ctx context.Context, sub *domfeedback.Submission) (feedbackuc.Result, error)
}

func (m *mockFeedbackUC) Submit(ctx context.Context, sub *domfeedback.Submission) (feedbackuc.Result, error) {
	return m.submitFn(ctx, sub)
}

// --- public Index / BlobStore fakes ---

type fakeIndex struct {
	matches []Match
	err     error
	gotTopK int
}

func (f *fakeIndex) Query(_ context.Context, _ []float64, topK int) ([]Match, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

type fakeBlobs struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeBlobs) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return "https://blobs.test/" + name, nil
}
