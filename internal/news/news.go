// Package news produces the market headline that accompanies each simulated
// day.
//
// The Adapter asks a Provider (normally Gemini) for a structured event and
// always resolves to a valid model.NewsEvent: missing fields are defaulted and
// any provider failure, including a timeout, yields a neutral fallback event.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketsim/engine/internal/metrics"
	"github.com/marketsim/engine/internal/model"
)

// Defaults used when the provider omits a field.
const (
	DefaultTitle   = "Market Opens Quietly"
	DefaultContent = "Investors are waiting for more data before making significant moves."
)

// Copy of the neutral event returned when the provider fails.
const (
	FallbackTitle   = "Market Stability Continues"
	FallbackContent = "No major news reported today. Markets remain steady."
)

const promptTemplate = `Generate a realistic financial news headline and brief content for day %d of a stock market simulation.
The news should affect one or more of these sectors: %s.
Provide a sentiment impact score between -1.0 (very negative) and 1.0 (very positive).`

// Generator produces the news event for a day. Implementations never fail.
type Generator interface {
	Generate(ctx context.Context, day int, sectors []string) model.NewsEvent
}

// Provider is the outbound boundary to a generative text service. Complete
// returns the raw JSON payload {title, content, impact, affectedSectors}.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// payload mirrors the provider's structured output. Pointer fields
// distinguish "absent" from zero values.
type payload struct {
	Title           *string  `json:"title"`
	Content         *string  `json:"content"`
	Impact          *float64 `json:"impact"`
	AffectedSectors []string `json:"affectedSectors"`
}

// Adapter turns a Provider into a total Generator.
type Adapter struct {
	provider Provider
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLogger overrides the logger used for provider failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter wraps provider. A non-positive timeout leaves the call bounded
// only by the caller's context.
func NewAdapter(provider Provider, timeout time.Duration, opts ...Option) *Adapter {
	a := &Adapter{
		provider: provider,
		timeout:  timeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ Generator = (*Adapter)(nil)

// Generate requests a headline for day. It never returns an invalid event.
func (a *Adapter) Generate(ctx context.Context, day int, sectors []string) model.NewsEvent {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(promptTemplate, day, strings.Join(sectors, ", "))

	start := time.Now()
	raw, err := a.provider.Complete(ctx, prompt)
	metrics.NewsLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NewsFallbacks.Inc()
		a.logger.Error("news generation failed, using fallback", "day", day, "err", err)
		return Fallback(day, a.now())
	}

	return a.parse(raw, day, sectors)
}

// parse decodes the provider payload. A malformed payload is handled the
// same way as one with every field missing.
func (a *Adapter) parse(raw string, day int, sectors []string) model.NewsEvent {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		a.logger.Warn("news payload malformed, using defaults", "day", day, "err", err)
		p = payload{}
	}

	ev := model.NewsEvent{
		ID:              uuid.New().String(),
		Title:           DefaultTitle,
		Content:         DefaultContent,
		AffectedSectors: filterSectors(p.AffectedSectors, sectors),
		Day:             day,
		Timestamp:       a.now(),
	}
	if p.Title != nil && *p.Title != "" {
		ev.Title = *p.Title
	}
	if p.Content != nil && *p.Content != "" {
		ev.Content = *p.Content
	}
	if p.Impact != nil {
		ev.Impact = clampImpact(*p.Impact)
	}
	return ev
}

// Fallback returns the neutral event used when the provider is unavailable.
func Fallback(day int, at time.Time) model.NewsEvent {
	return model.NewsEvent{
		ID:              uuid.New().String(),
		Title:           FallbackTitle,
		Content:         FallbackContent,
		Impact:          0,
		AffectedSectors: []string{},
		Day:             day,
		Timestamp:       at,
	}
}

func clampImpact(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// filterSectors keeps the requested sectors the provider named, once each,
// in the order the provider listed them. Matching ignores case and
// surrounding whitespace; the canonical sector name is returned.
func filterSectors(named, known []string) []string {
	canonical := make(map[string]string, len(known))
	for _, s := range known {
		canonical[strings.ToLower(s)] = s
	}
	out := []string{}
	for _, s := range named {
		key := strings.ToLower(strings.TrimSpace(s))
		if c, ok := canonical[key]; ok {
			out = append(out, c)
			delete(canonical, key)
		}
	}
	return out
}
