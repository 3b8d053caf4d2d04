package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-ingest-platform/models"
)

// MongoStore is the durable Store backed by MongoDB. ReplaceChunks and
// Tombstone run inside a session transaction so the item document and its
// chunk set always change together.
type MongoStore struct {
	client   *mongo.Client
	items    *mongo.Collection
	chunks   *mongo.Collection
	projects *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		items:    db.Collection("tracked_items"),
		chunks:   db.Collection("chunks"),
		projects: db.Collection("projects"),
	}
}

func (s *MongoStore) GetItem(ctx context.Context, identity string) (*models.TrackedItem, error) {
	var item models.TrackedItem
	err := s.items.FindOne(ctx, bson.M{"identity": identity}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return &item, nil
}

func (s *MongoStore) UpsertItem(ctx context.Context, item *models.TrackedItem) error {
	_, err := s.items.UpdateOne(ctx,
		bson.M{"identity": item.Identity},
		bson.M{"$set": itemUpdate(item)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

func (s *MongoStore) ReplaceChunks(ctx context.Context, item *models.TrackedItem, chunks []models.Chunk) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.items.UpdateOne(sc,
			bson.M{"identity": item.Identity},
			bson.M{"$set": itemUpdate(item)},
			options.Update().SetUpsert(true),
		); err != nil {
			return fmt.Errorf("failed to upsert item: %w", err)
		}

		if _, err := s.chunks.DeleteMany(sc, bson.M{"parent_identity": item.Identity}); err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}

		if len(chunks) > 0 {
			docs := make([]interface{}, len(chunks))
			for i := range chunks {
				docs[i] = chunks[i]
			}
			if _, err := s.chunks.InsertMany(sc, docs); err != nil {
				return fmt.Errorf("failed to insert chunks: %w", err)
			}
		}
		return nil
	})
}

func (s *MongoStore) Tombstone(ctx context.Context, identity string) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		now := time.Now().UTC()
		result, err := s.items.UpdateOne(sc,
			bson.M{"identity": identity},
			bson.M{"$set": bson.M{
				"deleted":        true,
				"deleted_at":     now,
				"last_synced_at": now,
			}},
		)
		if err != nil {
			return fmt.Errorf("failed to tombstone item: %w", err)
		}
		if result.MatchedCount == 0 {
			return ErrNotFound
		}

		if _, err := s.chunks.DeleteMany(sc, bson.M{"parent_identity": identity}); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) GetChunks(ctx context.Context, parentIdentity string) ([]models.Chunk, error) {
	cursor, err := s.chunks.Find(ctx,
		bson.M{"parent_identity": parentIdentity},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer cursor.Close(ctx)

	chunks := []models.Chunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

func (s *MongoStore) ListItems(ctx context.Context, projectAlias string) ([]models.TrackedItem, error) {
	return s.findItems(ctx, bson.M{"project_alias": projectAlias})
}

func (s *MongoStore) ListRemoteItems(ctx context.Context) ([]models.TrackedItem, error) {
	return s.findItems(ctx, bson.M{
		"deleted":  bson.M{"$ne": true},
		"identity": bson.M{"$regex": "^https?://"},
	})
}

func (s *MongoStore) findItems(ctx context.Context, filter bson.M) ([]models.TrackedItem, error) {
	cursor, err := s.items.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "identity", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.TrackedItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

func (s *MongoStore) UpsertProject(ctx context.Context, project *models.Project) error {
	_, err := s.projects.UpdateOne(ctx,
		bson.M{"alias": project.Alias},
		bson.M{
			"$set": bson.M{
				"root":   project.Root,
				"active": project.Active,
			},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

func (s *MongoStore) GetProject(ctx context.Context, alias string) (*models.Project, error) {
	var project models.Project
	err := s.projects.FindOne(ctx, bson.M{"alias": alias}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

func (s *MongoStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	cursor, err := s.projects.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "alias", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer cursor.Close(ctx)

	projects := []models.Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// itemUpdate builds the $set document for an item write. The _id is left to
// Mongo so upserts stay idempotent on identity.
func itemUpdate(item *models.TrackedItem) bson.M {
	update := bson.M{
		"project_alias":  item.ProjectAlias,
		"identity":       item.Identity,
		"content_hash":   item.ContentHash,
		"status":         item.Status,
		"title":          item.Title,
		"strategy_used":  item.StrategyUsed,
		"last_error":     item.LastError,
		"last_synced_at": item.LastSyncedAt,
		"deleted":        item.Deleted,
	}
	if item.DeletedAt != nil {
		update["deleted_at"] = item.DeletedAt
	}
	if item.Enrichment != nil {
		update["enrichment"] = item.Enrichment
	}
	return update
}
