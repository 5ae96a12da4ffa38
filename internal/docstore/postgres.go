package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"taskboard/pkg/metrics"
)

const changeChannelPrefix = "docstore:changes:"

// PostgresStore keeps documents as JSONB rows and rides collection change
// notifications over Redis pub/sub so live queries can re-run.
type PostgresStore struct {
	db     *pgxpool.Pool
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, rdb: rdb, logger: logger}
}

func (s *PostgresStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	id := ksuid.New().String()

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
        INSERT INTO documents (collection, id, doc, updated_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := s.db.Exec(ctx, query, collection, id, body); err != nil {
		s.logger.Error("Failed to insert document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return "", err
	}

	s.notifyChange(ctx, collection)
	s.logger.Debug("Document added",
		zap.String("collection", collection),
		zap.String("id", id),
	)
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch Document) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	query := `
        UPDATE documents
        SET doc = doc || $3::jsonb, updated_at = NOW()
        WHERE collection = $1 AND id = $2
    `
	result, err := s.db.Exec(ctx, query, collection, id, body)
	if err != nil {
		s.logger.Error("Failed to update document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.notifyChange(ctx, collection)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query := `
        DELETE FROM documents
        WHERE collection = $1 AND id = $2
    `
	result, err := s.db.Exec(ctx, query, collection, id)
	if err != nil {
		s.logger.Error("Failed to delete document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.notifyChange(ctx, collection)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	query := `
        SELECT doc, updated_at FROM documents
        WHERE collection = $1 AND id = $2
    `
	var body []byte
	var updatedAt time.Time
	err := s.db.QueryRow(ctx, query, collection, id).Scan(&body, &updatedAt)
	if err == pgx.ErrNoRows {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, err
	}

	var data Document
	if err := json.Unmarshal(body, &data); err != nil {
		return Doc{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return Doc{ID: id, Data: data, UpdatedAt: updatedAt}, nil
}

// Find runs q once and returns the current result set.
func (s *PostgresStore) Find(ctx context.Context, q Query) ([]Doc, error) {
	return s.runQuery(ctx, q)
}

// Subscribe runs q once up front, then again after every change published
// for the collection, emitting the full result set each time.
func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, CancelFunc, error) {
	if q.Collection == "" {
		return nil, nil, fmt.Errorf("subscribe: collection required")
	}

	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.rdb.Subscribe(subCtx, changeChannelPrefix+q.Collection)

	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		emit := func() bool {
			docs, err := s.runQuery(subCtx, q)
			if err != nil {
				if subCtx.Err() != nil {
					return false
				}
				s.logger.Error("Live query failed",
					zap.String("collection", q.Collection),
					zap.Error(err),
				)
				select {
				case out <- Snapshot{Err: err}:
				case <-subCtx.Done():
				}
				return false
			}
			metrics.RecordSnapshot(q.Collection, len(docs))
			select {
			case out <- Snapshot{Docs: docs}:
				return true
			case <-subCtx.Done():
				return false
			}
		}

		if !emit() {
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out, CancelFunc(cancel), nil
}

func (s *PostgresStore) runQuery(ctx context.Context, q Query) ([]Doc, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, doc, updated_at FROM documents WHERE collection = $1`)

	args := []any{q.Collection}
	for field, value := range q.Filters {
		args = append(args, field, value)
		fmt.Fprintf(&sb, " AND doc->>$%d = $%d", len(args)-1, len(args))
	}
	sb.WriteString(" ORDER BY updated_at DESC")

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Doc{}
	for rows.Next() {
		var d Doc
		var body []byte
		if err := rows.Scan(&d.ID, &body, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &d.Data); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) notifyChange(ctx context.Context, collection string) {
	if err := s.rdb.Publish(ctx, changeChannelPrefix+collection, "changed").Err(); err != nil {
		// Subscribers miss this wakeup but catch up on the next one.
		s.logger.Warn("Failed to publish change notification",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}
}
