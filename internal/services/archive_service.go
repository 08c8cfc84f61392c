package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/poll"
	"classpoll/internal/storage"
	"classpoll/pkg/logger"
)

const archivePutTimeout = 15 * time.Second

// ArchiveService exports final results of completed polls to object storage.
// It is best-effort: export failures are logged and never affect the poll
// lifecycle.
type ArchiveService struct {
	store *storage.Client
	log   *zap.Logger
}

func NewArchiveService(store *storage.Client, l *logger.Logger) *ArchiveService {
	return &ArchiveService{
		store: store,
		log:   l.Logger.With(zap.String("component", "archive_service")),
	}
}

type archiveDocument struct {
	PollID     uuid.UUID   `json:"poll_id"`
	ArchivedAt time.Time   `json:"archived_at"`
	Results    *poll.Tally `json:"results"`
}

// ArchivePollResults uploads the final tally as a JSON document keyed by
// date and poll id. Safe to call from a timer hook; runs its own timeout.
func (s *ArchiveService) ArchivePollResults(pollID uuid.UUID, results *poll.Tally) {
	if s == nil || s.store == nil {
		return
	}

	now := time.Now().UTC()
	doc := archiveDocument{PollID: pollID, ArchivedAt: now, Results: results}
	body, err := json.Marshal(doc)
	if err != nil {
		s.log.Error("failed to encode archive document", zap.String("poll_id", pollID.String()), zap.Error(err))
		return
	}

	key := fmt.Sprintf("polls/%s/%s.json", now.Format("2006-01-02"), pollID)

	ctx, cancel := context.WithTimeout(context.Background(), archivePutTimeout)
	defer cancel()
	if err := s.store.PutJSON(ctx, key, body); err != nil {
		s.log.Error("failed to archive poll results",
			zap.String("poll_id", pollID.String()),
			zap.String("key", key),
			zap.Error(err))
		return
	}

	s.log.Info("poll results archived",
		zap.String("poll_id", pollID.String()),
		zap.String("bucket", s.store.Bucket()),
		zap.String("key", key))
}
