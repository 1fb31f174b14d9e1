package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/llm"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/storage"
)

// ErrIngestionFailed wraps every error that left a document failed.
var ErrIngestionFailed = errors.New("ingestion failed")

var (
	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_documents_total",
			Help: "Documents that reached a terminal ingestion status.",
		},
		[]string{"status"},
	)
	ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Time from dequeue to terminal status.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
	chunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_chunks_total",
		Help: "Chunks persisted by the ingestion pipeline.",
	})
)

func init() {
	prometheus.MustRegister(documentsTotal, ingestDuration, chunksTotal)
}

// TokenCounter sizes chunk text.
type TokenCounter interface {
	Count(model, text string) int
}

// Pipeline processes one document at a time: extract, chunk, embed, persist.
type Pipeline struct {
	DB        *gorm.DB
	Store     storage.Store
	Extractor Extractor
	Embedder  llm.Embedder
	Tokens    TokenCounter
	// Model is the model name passed to the token counter.
	Model string
	Log   zerolog.Logger
}

type documentEvent struct {
	DocumentID     string `json:"documentId"`
	MentorLessonID string `json:"mentorLessonId"`
	UploadedBy     string `json:"uploadedBy"`
	Chunks         int    `json:"chunks,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Process ingests the document with id docID. Documents that are no longer
// processing are skipped. Any stage failure marks the document failed and
// returns an error wrapping ErrIngestionFailed. A cancelled ctx leaves the
// document processing so startup recovery picks it up again.
func (p *Pipeline) Process(ctx context.Context, docID string) (err error) {
	ctx, span := otel.Tracer("ingest").Start(ctx, "Process",
		trace.WithAttributes(attribute.String("document.id", docID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	log := p.Log.With().Str("document_id", docID).Logger()

	doc, err := repo.GetDocument(ctx, p.DB, docID)
	if errors.Is(err, repo.ErrNotFound) {
		log.Info().Msg("document gone, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}
	if doc.Status != domain.DocumentProcessing {
		log.Info().Str("status", string(doc.Status)).Msg("document not processing, skipping")
		return nil
	}

	data, err := p.Store.Get(ctx, doc.StorageKey)
	if err != nil {
		return p.fail(ctx, doc, start, "fetch", err)
	}

	pages, err := p.Extractor.Extract(ctx, data, doc.Type)
	if err != nil {
		return p.fail(ctx, doc, start, "extract", err)
	}
	chunks := ChunkPages(pages)
	if len(chunks) == 0 {
		return p.fail(ctx, doc, start, "extract", errors.New("no extractable text"))
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vecs, err := p.Embedder.EmbedPages(ctx, texts)
	if err != nil {
		return p.fail(ctx, doc, start, "embed", err)
	}
	if len(vecs) != len(chunks) {
		return p.fail(ctx, doc, start, "embed",
			fmt.Errorf("%w: %d texts, %d vectors", llm.ErrEmbeddingMismatch, len(chunks), len(vecs)))
	}
	for i := range chunks {
		chunks[i].Embedding = pgvector.NewVector(vecs[i])
		if p.Tokens != nil {
			chunks[i].TokenCount = p.Tokens.Count(p.Model, chunks[i].Content)
		}
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ReplaceChunks(ctx, tx, doc.ID, chunks); err != nil {
			return err
		}
		if err := repo.FinishDocument(ctx, tx, doc.ID, domain.DocumentReady, ""); err != nil {
			return err
		}
		_, err := repo.AppendEvent(ctx, tx, domain.EventDocumentReady, doc.ID, documentEvent{
			DocumentID: doc.ID, MentorLessonID: doc.MentorLessonID, UploadedBy: doc.UploadedBy, Chunks: len(chunks),
		})
		return err
	})
	if errors.Is(err, repo.ErrConflict) || errors.Is(err, repo.ErrNotFound) {
		// Deleted or restarted while we worked; the newer request owns it now.
		log.Info().Err(err).Msg("document changed during ingestion, discarding result")
		return nil
	}
	if err != nil {
		return p.fail(ctx, doc, start, "persist", err)
	}

	documentsTotal.WithLabelValues(string(domain.DocumentReady)).Inc()
	ingestDuration.WithLabelValues(string(domain.DocumentReady)).Observe(time.Since(start).Seconds())
	chunksTotal.Add(float64(len(chunks)))
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	log.Info().Int("chunks", len(chunks)).Dur("took", time.Since(start)).Msg("document ready")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, doc *domain.Document, start time.Time, stage string, cause error) error {
	wrapped := fmt.Errorf("%w: %s: %w", ErrIngestionFailed, stage, cause)
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", stage, ctx.Err())
	}

	reason := fmt.Sprintf("%s: %v", stage, cause)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.FinishDocument(ctx, tx, doc.ID, domain.DocumentFailed, reason); err != nil {
			return err
		}
		_, err := repo.AppendEvent(ctx, tx, domain.EventDocumentFailed, doc.ID, documentEvent{
			DocumentID: doc.ID, MentorLessonID: doc.MentorLessonID, UploadedBy: doc.UploadedBy, Reason: reason,
		})
		return err
	})
	if err != nil && !errors.Is(err, repo.ErrConflict) && !errors.Is(err, repo.ErrNotFound) {
		p.Log.Error().Err(err).Str("document_id", doc.ID).Msg("mark document failed")
	}

	documentsTotal.WithLabelValues(string(domain.DocumentFailed)).Inc()
	ingestDuration.WithLabelValues(string(domain.DocumentFailed)).Observe(time.Since(start).Seconds())
	p.Log.Warn().Err(cause).Str("document_id", doc.ID).Str("stage", stage).Msg("document failed")
	return wrapped
}
