package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// Archive is a secondary, long-term copy of the audit trail.
type Archive interface {
	Upsert(ctx context.Context, entries []models.AuditLog) error
}

type MongoArchive struct {
	collection *mongo.Collection
}

func NewMongoArchive(ctx context.Context, uri, database, collection string) (*MongoArchive, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create audit index: %w", err)
	}
	return &MongoArchive{collection: coll}, client, nil
}

func (a *MongoArchive) Upsert(ctx context.Context, entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		doc := bson.M{
			"_id":            e.ID.String(),
			"actor_id":       e.ActorID.String(),
			"action":         e.Action,
			"entity_type":    e.EntityType,
			"entity_id":      e.EntityID.String(),
			"previous_state": e.PreviousState,
			"new_state":      e.NewState,
			"metadata":       e.Metadata,
			"created_at":     e.CreatedAt,
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc["_id"]}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := a.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// Exporter copies committed audit entries from the primary store into an
// Archive. Entries are re-read with an overlap window and upserted by ID, so
// a late commit with an older timestamp is still picked up.
type Exporter struct {
	repo    store.Repository
	archive Archive
	log     *logger.Logger

	overlap   time.Duration
	batchSize int
	cursor    time.Time
}

func NewExporter(repo store.Repository, archive Archive, log *logger.Logger) *Exporter {
	return &Exporter{
		repo:      repo,
		archive:   archive,
		log:       log.WithField("component", "audit_exporter"),
		overlap:   time.Minute,
		batchSize: 500,
	}
}

// ExportOnce copies everything since the last cursor and reports how many
// entries were written.
func (e *Exporter) ExportOnce(ctx context.Context) (int, error) {
	since := e.cursor
	if !since.IsZero() {
		since = since.Add(-e.overlap)
	}

	total := 0
	for {
		entries, err := e.repo.ListAuditLogs(ctx, store.AuditFilter{Since: since, Limit: e.batchSize})
		if err != nil {
			return total, fmt.Errorf("list audit logs: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}
		if err := e.archive.Upsert(ctx, entries); err != nil {
			return total, fmt.Errorf("archive audit logs: %w", err)
		}
		total += len(entries)

		last := entries[len(entries)-1].CreatedAt
		if last.After(e.cursor) {
			e.cursor = last
		}
		if len(entries) < e.batchSize || !last.After(since) {
			return total, nil
		}
		since = last
	}
}

// Run exports on every tick until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.ExportOnce(ctx)
			if err != nil {
				e.log.WithError(err).Warn("Audit export failed")
				continue
			}
			if n > 0 {
				e.log.WithField("count", n).Debug("Audit entries archived")
			}
		}
	}
}
