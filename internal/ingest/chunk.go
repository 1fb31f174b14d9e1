package ingest

import (
	"strings"

	"gorm.io/datatypes"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// ChunkPages returns one chunk per non-blank page, in page order. Positions
// are contiguous from zero.
func ChunkPages(pages []Page) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		var meta domain.ChunkMetadata
		if p.Number != nil {
			n := *p.Number
			meta.Loc = &domain.PageLoc{PageNumber: &n}
		}
		out = append(out, domain.Chunk{
			Position: len(out),
			Content:  p.Text,
			Metadata: datatypes.NewJSONType(meta),
		})
	}
	return out
}
