package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docqa/internal/extract"
	"docqa/internal/middleware"
	"docqa/internal/text"
	"docqa/internal/vector"
	"docqa/internal/worker"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrDuplicateDocument = errors.New("document already ingested")

type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentHash string    `json:"-"`
	Status      string    `json:"status"`
	Pages       int       `json:"pages"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateCounts(ctx context.Context, id string, pages, chunks int) error
	Count(ctx context.Context) (int, error)
}

type Extractor interface {
	Pages(path string) ([]extract.Page, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexStore persists the corpus-wide index artifact pair.
type IndexStore interface {
	Load() (*vector.Index, error)
	Save(ix *vector.Index) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Service owns ingestion: registry bookkeeping plus the extract → chunk →
// embed → index pipeline. The pipeline itself is synchronous; async mode
// only moves where it runs (an NSQ consumer instead of the request thread).
type Service struct {
	repo         Repository
	extractor    Extractor
	embedder     Embedder
	index        IndexStore
	pub          EventPublisher
	async        bool
	chunkSize    int
	chunkOverlap int

	// Serializes index rebuilds. Queries load snapshots, so they are safe
	// while a rebuild is in flight.
	mu sync.Mutex
}

func NewService(repo Repository, ex Extractor, em Embedder, ix IndexStore, pub EventPublisher, async bool, chunkSize, chunkOverlap int) *Service {
	return &Service{
		repo:         repo,
		extractor:    ex,
		embedder:     em,
		index:        ix,
		pub:          pub,
		async:        async,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Upload registers an uploaded file and ingests it, inline or via the task
// queue depending on configuration. Duplicate content is rejected.
func (s *Service) Upload(ctx context.Context, path, hash, name string) (*Document, error) {
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateDocument
	}

	doc := &Document{Name: name, ContentHash: hash, Status: StatusInProgress}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	if s.async && s.pub != nil {
		payload, _ := json.Marshal(worker.IngestTaskPayload{
			DocumentID:    doc.ID,
			Path:          path,
			Name:          name,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err := s.pub.Publish(worker.TopicIngestTask, payload); err != nil {
			slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "document_id", doc.ID)
			return nil, err
		}
		slog.InfoContext(ctx, "published ingest task", "document_id", doc.ID, "name", name)
		return doc, nil
	}

	if err := s.Process(ctx, doc.ID, path, name); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, doc.ID)
}

// Process runs the ingestion pipeline for a registered document and records
// the outcome in the registry. Extraction failures are recoverable,
// user-facing conditions, not process faults.
func (s *Service) Process(ctx context.Context, id, path, name string) error {
	if err := s.process(ctx, id, path, name); err != nil {
		if updateErr := s.repo.UpdateStatus(ctx, id, StatusFailed); updateErr != nil {
			slog.ErrorContext(ctx, "failed to mark document failed", "error", updateErr, "document_id", id)
		}
		return err
	}
	return nil
}

func (s *Service) process(ctx context.Context, id, path, name string) error {
	pages, err := s.extractor.Pages(path)
	if err != nil {
		return err
	}

	var chunks []text.Chunk
	for _, p := range pages {
		meta := text.PageMeta{Document: name, Page: p.Number}
		chunks = append(chunks, text.ChunkPage(p.Text, meta, s.chunkSize, s.chunkOverlap)...)
	}
	if len(chunks) == 0 {
		return extract.ErrNoExtractableText
	}

	texts := make([]string, len(chunks))
	metas := make([]vector.Metadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		metas[i] = vector.Metadata{Document: c.Document, Page: c.Page, Text: c.Content}
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The persisted pair is the corpus of record: extend it with this
	// document and rewrite both artifacts.
	existing, err := s.index.Load()
	switch {
	case errors.Is(err, vector.ErrIndexNotFound):
		// First document of the deployment.
	case err != nil:
		return fmt.Errorf("load existing index: %w", err)
	default:
		vectors = append(existing.Vectors(), vectors...)
		metas = append(existing.Metas(), metas...)
	}

	ix, err := vector.Build(vectors, metas)
	if err != nil {
		return err
	}
	if err := s.index.Save(ix); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	// Registry bookkeeping is best-effort once the index is durable.
	if err := s.repo.UpdateCounts(ctx, id, len(pages), len(chunks)); err != nil {
		slog.WarnContext(ctx, "failed to update document counts", "error", err, "document_id", id)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
		slog.WarnContext(ctx, "failed to mark document completed", "error", err, "document_id", id)
	}

	slog.InfoContext(ctx, "document ingested", "name", name, "pages", len(pages), "chunks", len(chunks), "index_size", ix.Len())
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}
