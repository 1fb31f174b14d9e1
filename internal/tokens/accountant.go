// Package tokens counts model tokens for prompt budgeting. Counting never
// fails: when no encoder is available for a model the count degrades to a
// fixed characters-per-token estimate.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// charsPerToken is the heuristic used when no encoder is available.
const charsPerToken = 4

// Encoder turns text into model tokens.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// LoadFunc acquires the encoder for a model.
type LoadFunc func(model string) (Encoder, error)

// TiktokenLoader resolves encoders through tiktoken's model table.
func TiktokenLoader(model string) (Encoder, error) {
	return tiktoken.EncodingForModel(model)
}

var fallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tokens_fallback_total",
		Help: "Token counts answered by the length heuristic instead of an encoder.",
	},
	[]string{"model"},
)

func init() {
	prometheus.MustRegister(fallbackTotal)
}

// Accountant counts tokens per model. Encoders that load successfully are
// cached; a failed load is retried on the next call, never within one.
type Accountant struct {
	load LoadFunc
	log  zerolog.Logger

	mu       sync.RWMutex
	encoders map[string]Encoder
}

// Option configures an Accountant.
type Option func(*Accountant)

// WithLoader replaces the encoder source.
func WithLoader(fn LoadFunc) Option {
	return func(a *Accountant) { a.load = fn }
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Accountant) { a.log = l }
}

// New returns an Accountant backed by tiktoken unless overridden.
func New(opts ...Option) *Accountant {
	a := &Accountant{
		load:     TiktokenLoader,
		log:      zerolog.Nop(),
		encoders: make(map[string]Encoder),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Count returns the number of tokens text occupies for model. It makes a
// single encoding attempt and falls back to Estimate on any failure.
func (a *Accountant) Count(model, text string) int {
	if text == "" {
		return 0
	}
	n, err := a.encode(model, text)
	if err != nil {
		fallbackTotal.WithLabelValues(model).Inc()
		a.log.Debug().Err(err).Str("model", model).Msg("token count fell back to estimate")
		return Estimate(text)
	}
	return n
}

// CountMessages sums the token counts of the messages' contents.
func (a *Accountant) CountMessages(model string, msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += a.Count(model, m.Content)
	}
	return total
}

// Estimate is ceil(runes/4).
func Estimate(text string) int {
	n := len([]rune(text))
	return (n + charsPerToken - 1) / charsPerToken
}

func (a *Accountant) encode(model, text string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()

	enc, err := a.encoder(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (a *Accountant) encoder(model string) (Encoder, error) {
	a.mu.RLock()
	enc, ok := a.encoders[model]
	a.mu.RUnlock()
	if ok {
		return enc, nil
	}

	enc, err := a.load(model)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("no encoder for model %q", model)
	}
	a.mu.Lock()
	a.encoders[model] = enc
	a.mu.Unlock()
	return enc, nil
}
