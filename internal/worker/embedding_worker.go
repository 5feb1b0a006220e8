// Package worker runs background embedding enrichment so capture calls never
// wait on the embedding provider.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/raki39/FRONTGraph-sub001/internal/embedding"
	"github.com/raki39/FRONTGraph-sub001/internal/model"
	"github.com/raki39/FRONTGraph-sub001/internal/repository"
)

const embedTimeout = 60 * time.Second

type job struct {
	message *model.ChatMessage
	userID  string
	agentID string
}

// EmbeddingWorker consumes enrichment jobs from a bounded queue, embeds the
// user message and stores the resulting vector. Jobs are dispatched
// fire-and-forget; a full queue drops the job with a warning rather than
// blocking the producer.
type EmbeddingWorker struct {
	client *embedding.Client
	repo   *repository.EmbeddingRepository
	jobs   chan job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEmbeddingWorker creates the worker with the given queue capacity.
func NewEmbeddingWorker(client *embedding.Client, repo *repository.EmbeddingRepository, queueSize int) *EmbeddingWorker {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &EmbeddingWorker{
		client: client,
		repo:   repo,
		jobs:   make(chan job, queueSize),
	}
}

// Start launches the consumer goroutine.
func (w *EmbeddingWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-w.jobs:
				w.process(ctx, j)
			}
		}
	}()
}

// Stop cancels in-flight work and waits for the consumer to exit.
func (w *EmbeddingWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Schedule enqueues enrichment for a message without blocking. Returns false
// when the queue is full or the worker is unusable.
func (w *EmbeddingWorker) Schedule(msg *model.ChatMessage, userID, agentID string) bool {
	if w.client == nil || w.repo == nil {
		return false
	}
	select {
	case w.jobs <- job{message: msg, userID: userID, agentID: agentID}:
		return true
	default:
		return false
	}
}

// process embeds one message and persists the vector. Failures are logged
// and discarded; enrichment is best-effort.
func (w *EmbeddingWorker) process(ctx context.Context, j job) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := w.client.Embed(embedCtx, j.message.Content)
	if err != nil {
		log.Printf("Warning: failed to embed message %s: %v", j.message.ID, err)
		return
	}

	emb := &model.MessageEmbedding{
		ID:        uuid.New().String(),
		MessageID: j.message.ID,
		SessionID: j.message.SessionID,
		UserID:    j.userID,
		AgentID:   j.agentID,
		Model:     w.client.Model(),
		Embedding: pgvector.NewVector(vec),
	}
	if err := w.repo.Save(emb); err != nil {
		log.Printf("Warning: failed to store embedding for message %s: %v", j.message.ID, err)
	}
}
