// Package search ranks lesson passages against a learner's message. It is
// small and deterministic:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// When both the query and a passage carry embeddings of the same dimension
// the score is their cosine similarity. Otherwise the passage is scored by
// Jaccard similarity between token sets: score = |Q ∩ P| / |Q ∪ P|.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Passage is one retrievable unit, usually a document chunk.
type Passage struct {
	ID         string
	DocumentID string
	Position   int
	Page       *int
	Text       string
	Vector     []float32
}

// Result is a ranked passage with its similarity score.
type Result struct {
	Passage
	Score float64
}

// Index is the minimal interface implemented by all search indices.
// qvec may be nil, in which case only lexical scoring applies.
type Index interface {
	TopK(query string, qvec []float32, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minPassageRunes int
	stopwords       map[string]struct{}
	minScore        float64
}

func defaultConfig() config {
	return config{
		minPassageRunes: 1,
		stopwords:       nil,
		minScore:        0,
	}
}

func WithMinPassageRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minPassageRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore drops results scoring at or below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 {
			c.minScore = s
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	Passage
	tokens map[string]struct{}
	norm   float64
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over passages. Blank passages are skipped.
func NewIndex(passages []Passage, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(passages))
	for _, p := range passages {
		p.Text = strings.TrimSpace(normalizeWhitespace(p.Text))
		if p.Text == "" {
			continue
		}
		if cfg.minPassageRunes > 0 && utf8.RuneCountInString(p.Text) < cfg.minPassageRunes {
			continue
		}
		docs = append(docs, doc{
			Passage: p,
			tokens:  tokenize(p.Text, cfg.stopwords),
			norm:    l2(p.Vector),
		})
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k best-matching passages.
func (i *index) TopK(q string, qvec []float32, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	if strings.TrimSpace(q) == "" && len(qvec) == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	qNorm := l2(qvec)

	buf := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		var score float64
		if qNorm > 0 && d.norm > 0 && len(qvec) == len(d.Vector) {
			score = dot(qvec, d.Vector) / (qNorm * d.norm)
		} else {
			score = jaccard(qTokens, d.tokens)
		}
		if score <= i.cfg.minScore {
			continue
		}
		buf = append(buf, Result{Passage: d.Passage, Score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if buf[a].DocumentID != buf[b].DocumentID {
			return buf[a].DocumentID < buf[b].DocumentID
		}
		return buf[a].Position < buf[b].Position
	})

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	union := float64(len(a) + len(b) - over)
	if union <= 0 {
		return 0
	}
	return float64(over) / union
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func l2(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(dot(v, v))
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
