package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// HashEmbedderDims is the vector size produced by HashEmbedder.
const HashEmbedderDims = 256

var hashWordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

// HashEmbedder embeds text by hashing lowercase words into a fixed number of
// buckets and L2-normalizing. Texts sharing words get similar vectors, which
// is enough for local retrieval without a provider.
type HashEmbedder struct {
	Dims int
}

func (h HashEmbedder) dims() int {
	if h.Dims > 0 {
		return h.Dims
	}
	return HashEmbedderDims
}

// EmbedPages returns one vector per text.
func (h HashEmbedder) EmbedPages(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h HashEmbedder) embed(text string) []float32 {
	n := h.dims()
	v := make([]float32, n)
	for _, w := range hashWordRE.FindAllString(strings.ToLower(text), -1) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%uint32(n)]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// OfflineModel answers without a provider. It never calls tools; JSON
// requests get a rejected verdict since nothing can be evaluated.
type OfflineModel struct{}

// Chat returns a canned reply echoing the latest user message.
func (OfflineModel) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.JSON {
		b, _ := json.Marshal(map[string]any{
			"accepted":  false,
			"rationale": "No evaluation model is configured.",
		})
		return &ChatResponse{Text: string(b)}, nil
	}
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	return &ChatResponse{Text: fmt.Sprintf("(offline mentor) You said: %s", last)}, nil
}

var (
	_ ChatModel = OfflineModel{}
	_ Embedder  = HashEmbedder{}
)
