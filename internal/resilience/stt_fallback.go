package resilience

import (
	"context"

	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across several speech
// recognisers. A recording that the primary cannot transcribe is retried on
// the next healthy backend.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional recogniser.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the recording through the first healthy recogniser.
func (f *STTFallback) Transcribe(ctx context.Context, a stt.Audio) (*stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, a)
	})
}
