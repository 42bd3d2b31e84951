package vision

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtable/internal/config"
	"labtable/internal/port"
)

type stubRecognizer struct {
	calls int
	out   *port.RecognizeOutput
	err   error
}

func (s *stubRecognizer) Recognize(context.Context, port.RecognizeInput) (*port.RecognizeOutput, error) {
	s.calls++
	return s.out, s.err
}

func ok(model string) *stubRecognizer {
	return &stubRecognizer{out: &port.RecognizeOutput{Candidate: json.RawMessage(`{}`), ModelUsed: model}}
}

func chainOf(rs ...*stubRecognizer) *Chain {
	providers := make([]Provider, len(rs))
	for i, r := range rs {
		providers[i] = Provider{Name: string(rune('a' + i)), Recognizer: r}
	}
	return NewChain(providers...)
}

func TestChain_PrimarySucceeds(t *testing.T) {
	primary, secondary := ok("a"), ok("b")

	out, err := chainOf(primary, secondary).Recognize(context.Background(), port.RecognizeInput{})
	require.NoError(t, err)
	assert.Equal(t, "a", out.ModelUsed)
	assert.Equal(t, 0, secondary.calls)
}

func TestChain_FailsOver(t *testing.T) {
	primary := &stubRecognizer{err: errors.New("500")}
	secondary := ok("b")

	out, err := chainOf(primary, secondary).Recognize(context.Background(), port.RecognizeInput{})
	require.NoError(t, err)
	assert.Equal(t, "b", out.ModelUsed)
}

func TestChain_RateLimitedProviderSitsOut(t *testing.T) {
	primary := &stubRecognizer{err: NewRateLimitError("a", errors.New("429"), 60)}
	secondary := ok("b")
	c := chainOf(primary, secondary)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Recognize(context.Background(), port.RecognizeInput{})
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), port.RecognizeInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, secondary.calls)

	now = now.Add(61 * time.Second)
	_, err = c.Recognize(context.Background(), port.RecognizeInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.calls, "asked again once the retry time passed")
}

func TestChain_AllRateLimited(t *testing.T) {
	a := &stubRecognizer{err: NewRateLimitError("a", errors.New("429"), 10)}
	b := &stubRecognizer{err: NewRateLimitError("b", errors.New("429"), 30)}
	c := chainOf(a, b)

	_, err := c.Recognize(context.Background(), port.RecognizeInput{})
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "all", rl.Provider)
	assert.LessOrEqual(t, rl.RetryAfter, 10*time.Second)

	// Both benched: nobody is asked.
	_, err = c.Recognize(context.Background(), port.RecognizeInput{})
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestChain_AllFailed(t *testing.T) {
	a := &stubRecognizer{err: errors.New("first")}
	b := &stubRecognizer{err: errors.New("second")}

	_, err := chainOf(a, b).Recognize(context.Background(), port.RecognizeInput{})
	assert.ErrorContains(t, err, "a: first")
	assert.ErrorContains(t, err, "b: second")
}

func TestChain_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &stubRecognizer{err: errors.New("timeout")}
	b := ok("b")
	cancel()

	_, err := chainOf(a, b).Recognize(ctx, port.RecognizeInput{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.calls)
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain().Recognize(context.Background(), port.RecognizeInput{})
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose", `Sure! {"a":{"b":2}} Hope this helps.`, `{"a":{"b":2}}`, false},
		{"no object", "nothing here", "", true},
		{"broken", `{"a":}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestFromConfig(t *testing.T) {
	RegisterProvider("stub-a", func(*config.VisionProviderConfig) (port.VisionRecognizer, error) { return ok("a"), nil })
	RegisterProvider("stub-b", func(*config.VisionProviderConfig) (port.VisionRecognizer, error) { return ok("b"), nil })

	single, err := FromConfig(&config.VisionConfig{Primary: config.VisionProviderConfig{Provider: "stub-a"}})
	require.NoError(t, err)
	assert.IsType(t, &stubRecognizer{}, single)

	both, err := FromConfig(&config.VisionConfig{
		Primary:   config.VisionProviderConfig{Provider: "stub-a"},
		Secondary: config.VisionProviderConfig{Provider: "stub-b"},
	})
	require.NoError(t, err)
	assert.IsType(t, &Chain{}, both)

	_, err = FromConfig(&config.VisionConfig{Primary: config.VisionProviderConfig{Provider: "nope"}})
	assert.ErrorContains(t, err, "unknown vision provider")
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, ParseRetryAfterHeader(""))
	assert.Equal(t, 0, ParseRetryAfterHeader("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, 12, ParseRetryAfterHeader("12"))
	assert.Equal(t, 60*time.Second, NewRateLimitError("x", errors.New("e"), 0).RetryAfter)
}
