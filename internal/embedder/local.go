package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalProvider is an offline embedder based on feature hashing. Words and
// character trigrams are hashed into Dimension signed buckets and the result
// is normalized, so texts sharing words or word fragments land close together
// under Euclidean distance. Deterministic and batch independent.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

func (l *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedCached(ctx, l.cache, texts, func(ctx context.Context, missing []string) ([][]float32, error) {
		out := make([][]float32, len(missing))
		for i, text := range missing {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = hashEmbed(text)
		}
		return out, nil
	})
}

func hashEmbed(text string) []float32 {
	v := make([]float32, Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		addFeature(v, "w:"+w, 1.0)
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			addFeature(v, "t:"+string(padded[i:i+3]), 0.5)
		}
	}
	return NormalizeVector(v)
}

func addFeature(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % uint64(len(v))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

func (l *LocalProvider) Dimension() int {
	return Dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}
