// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to return a canned transcript (or error) and to verify which
// audio the caller submitted.
//
// Example:
//
//	p := &mock.Provider{Transcript: &stt.Transcript{
//	    Text:  "بسم الله",
//	    Words: []stt.WordDetail{{Word: "بسم", Start: 0, End: 400 * time.Millisecond}},
//	}}
//	tr, _ := p.Transcribe(ctx, stt.Audio{Data: webm})
//	_ = p.Calls[0].Audio
package mock

import (
	"context"
	"sync"

	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the recording passed to Transcribe.
	Audio stt.Audio
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe. If nil, an empty transcript is
	// returned.
	Transcript *stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, if non-nil, is waited on before returning. The wait is aborted
	// with ctx.Err() when the context ends first.
	Delay <-chan struct{}

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Audio: a})
	delay, tr, err := p.Delay, p.Transcript, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return &stt.Transcript{}, nil
	}
	out := *tr
	out.Words = append([]stt.WordDetail(nil), tr.Words...)
	return &out, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
