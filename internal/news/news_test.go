package news

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsim/engine/internal/model"
)

// mockProvider is a Provider whose behavior is set per test.
type mockProvider struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	prompts    []string
}

func (m *mockProvider) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.completeFn(ctx, prompt)
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

var sectors = []string{"Energy", "Technology"}

func newTestAdapter(p Provider, timeout time.Duration) *Adapter {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdapter(p, timeout, WithClock(func() time.Time { return fixedNow }), WithLogger(quiet))
}

func TestGenerate_Success(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return `{"title":"Chip Shortage Eases","content":"Foundries ramp output.","impact":0.6,"affectedSectors":["Technology"]}`, nil
	}}

	ev := newTestAdapter(p, 0).Generate(context.Background(), 2, sectors)

	assert.Equal(t, "Chip Shortage Eases", ev.Title)
	assert.Equal(t, "Foundries ramp output.", ev.Content)
	assert.Equal(t, 0.6, ev.Impact)
	assert.Equal(t, []string{"Technology"}, ev.AffectedSectors)
	assert.Equal(t, 2, ev.Day)
	assert.Equal(t, fixedNow, ev.Timestamp)
	assert.NotEmpty(t, ev.ID)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "day 2")
	assert.Contains(t, p.prompts[0], "Energy, Technology")
}

func TestGenerate_MissingFieldsDefaulted(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return `{"impact":-0.4}`, nil
	}}

	ev := newTestAdapter(p, 0).Generate(context.Background(), 3, sectors)

	assert.Equal(t, DefaultTitle, ev.Title)
	assert.Equal(t, DefaultContent, ev.Content)
	assert.Equal(t, -0.4, ev.Impact)
	assert.Empty(t, ev.AffectedSectors)
	assert.NotNil(t, ev.AffectedSectors)
}

func TestGenerate_MalformedPayloadUsesDefaults(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return `{"title": "Half a headl`, nil
	}}

	ev := newTestAdapter(p, 0).Generate(context.Background(), 4, sectors)

	assert.Equal(t, DefaultTitle, ev.Title)
	assert.Equal(t, DefaultContent, ev.Content)
	assert.Zero(t, ev.Impact)
	assert.Empty(t, ev.AffectedSectors)
}

func TestGenerate_ProviderErrorFallsBack(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return "", errors.New("503 service unavailable")
	}}

	ev := newTestAdapter(p, 0).Generate(context.Background(), 5, sectors)

	assert.Equal(t, FallbackTitle, ev.Title)
	assert.Equal(t, FallbackContent, ev.Content)
	assert.Zero(t, ev.Impact)
	assert.Empty(t, ev.AffectedSectors)
	assert.Equal(t, 5, ev.Day)
	assert.NotEmpty(t, ev.ID)
}

func TestGenerate_TimeoutFallsBack(t *testing.T) {
	p := &mockProvider{completeFn: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	start := time.Now()
	ev := newTestAdapter(p, 20*time.Millisecond).Generate(context.Background(), 6, sectors)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, FallbackTitle, ev.Title)
	assert.Zero(t, ev.Impact)
}

func TestGenerate_ImpactClampedAndSectorsFiltered(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return `{"title":"t","content":"c","impact":3.5,"affectedSectors":["technology "," Energy","Mining","Energy"]}`, nil
	}}

	ev := newTestAdapter(p, 0).Generate(context.Background(), 2, sectors)

	assert.Equal(t, 1.0, ev.Impact)
	assert.Equal(t, []string{"Technology", "Energy"}, ev.AffectedSectors)
}

func TestGenerate_FreshIDs(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string) (string, error) {
		return `{}`, nil
	}}
	a := newTestAdapter(p, 0)

	first := a.Generate(context.Background(), 2, sectors)
	second := a.Generate(context.Background(), 2, sectors)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestClampImpact(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.25},
		{-7, -1},
		{1.01, 1},
		{-1, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampImpact(tt.in))
	}
}

func TestStatic_ReplaysScript(t *testing.T) {
	s := NewStatic(
		model.NewsEvent{Title: "first", Impact: 0.5, AffectedSectors: []string{"Energy"}},
		model.NewsEvent{Title: "second", Impact: -0.5},
	)

	a := s.Generate(context.Background(), 2, sectors)
	b := s.Generate(context.Background(), 3, sectors)
	c := s.Generate(context.Background(), 4, sectors)

	assert.Equal(t, "first", a.Title)
	assert.Equal(t, 2, a.Day)
	assert.Equal(t, "second", b.Title)
	assert.Equal(t, "second", c.Title, "last event repeats")
	assert.NotEqual(t, b.ID, c.ID)

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, 4, calls[2].Day)
	assert.Equal(t, sectors, calls[0].Sectors)
}

func TestStatic_EmptyScriptFallsBack(t *testing.T) {
	ev := NewStatic().Generate(context.Background(), 9, sectors)
	assert.True(t, strings.HasPrefix(ev.Title, "Market Stability"))
	assert.Zero(t, ev.Impact)
}
