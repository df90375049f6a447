// Package feedback turns the outcome of an analysis into a short coaching
// message written by an LLM.
//
// The LLM is advisory: every failure mode maps to a fixed French message, so
// [Generator.Feedback] never returns an error and never blocks longer than
// its timeout.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/llm"
)

// Static messages returned instead of LLM output.
const (
	MsgMissingKey = "Attention à la précision de certains mots."
	MsgUnparsable = "Quelques erreurs de prononciation détectées, soyez plus précis."
	MsgEmpty      = "L'IA n'a pas pu analyser en détail (Erreur serveur), mais la récitation semble correcte sur la forme."
	MsgTimeout    = "L'analyse IA a pris trop de temps. La récitation est validée techniquement, mais je n'ai pas pu générer de conseils détaillés."
	MsgTechnical  = "Erreur technique lors de l'analyse, mais la récitation est enregistrée."
)

const systemPrompt = "Tu es un expert Tajwid. Tu réponds uniquement en JSON."

const promptTemplate = `Analyse ces deux textes normalisés (sans voyelles).

Attendu : %s
Entendu : %s

Les textes se ressemblent à %d%%.
Explique brièvement les différences majeures (Mots oubliés ? Mots ajoutés ?).
Ne sois PAS scolaire. Donne un conseil concis en français.

Réponse (JSON) :
{ "feedback": "Ton conseil ici..." }`

// Option configures a [Generator].
type Option func(*Generator)

// WithTimeout bounds one LLM call. Defaults to 45 s.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature. Defaults to 0.3.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMetrics records LLM latency and errors on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// Generator produces coaching feedback. A Generator with a nil provider
// always returns [MsgTechnical]. Safe for concurrent use.
type Generator struct {
	provider    llm.Provider
	name        string
	timeout     time.Duration
	temperature float64
	metrics     *observe.Metrics
}

// New returns a Generator backed by provider. name labels metrics.
func New(provider llm.Provider, name string, opts ...Option) *Generator {
	g := &Generator{
		provider:    provider,
		name:        name,
		timeout:     45 * time.Second,
		temperature: 0.3,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Prompt renders the user prompt for one analysis. ratio is the overall
// score in [0, 1].
func Prompt(expected, heard string, ratio float64) string {
	return fmt.Sprintf(promptTemplate, expected, heard, int(ratio*100))
}

// Feedback asks the LLM to compare expected with heard and returns its
// advice, or one of the static messages when that fails.
func (g *Generator) Feedback(ctx context.Context, expected, heard string, ratio float64) string {
	if g == nil || g.provider == nil {
		return MsgTechnical
	}

	ctx, span := observe.StartSpan(ctx, "feedback.generate")
	defer span.End()
	log := observe.Logger(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.UserPrompt(systemPrompt, Prompt(expected, heard, ratio))
	req.Temperature = g.temperature
	req.JSON = true

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	if g.metrics != nil {
		g.metrics.RecordProviderCall(ctx, g.name, observe.KindLLM, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("feedback: llm timed out", "timeout", g.timeout)
			return MsgTimeout
		}
		log.Error("feedback: llm call failed", "err", err)
		return MsgTechnical
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		log.Error("feedback: llm returned no content")
		return MsgEmpty
	}
	return Parse(resp.Content)
}

// Parse extracts the "feedback" field from an LLM reply. Markdown code
// fences around the JSON object are tolerated.
func Parse(content string) string {
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return MsgUnparsable
	}
	s, ok := out["feedback"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return MsgMissingKey
	}
	return strings.TrimSpace(s)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json").
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
