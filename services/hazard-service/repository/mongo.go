package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hazard-reporting-system/services/hazard-service/models"
)

// MongoHazardStore backs HazardStore with a Mongo collection. Version
// fields on every record give compare-and-swap semantics for updates; the
// whole-collection overwrite of the original storage model never crosses
// this boundary.
type MongoHazardStore struct {
	coll *mongo.Collection
}

func NewMongoHazardStore(db *mongo.Database) *MongoHazardStore {
	return &MongoHazardStore{coll: db.Collection("hazards")}
}

func (s *MongoHazardStore) Insert(ctx context.Context, hazard *models.Hazard) error {
	hazard.Version = 1
	_, err := s.coll.InsertOne(ctx, hazard)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	return err
}

func (s *MongoHazardStore) FindByID(ctx context.Context, id int64) (*models.Hazard, error) {
	var hazard models.Hazard
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&hazard)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hazard, nil
}

func (s *MongoHazardStore) Update(ctx context.Context, hazard *models.Hazard) error {
	filter := bson.M{"_id": hazard.ID, "version": hazard.Version}

	hazard.Version++
	hazard.UpdatedAt = time.Now().UTC()

	result, err := s.coll.ReplaceOne(ctx, filter, hazard)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing record from a lost CAS race.
		count, err := s.coll.CountDocuments(ctx, bson.M{"_id": hazard.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *MongoHazardStore) ListByValidation(ctx context.Context, validationStatus string) ([]models.Hazard, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"validation_status": validationStatus}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hazards []models.Hazard
	if err := cursor.All(ctx, &hazards); err != nil {
		return nil, err
	}
	return hazards, nil
}

// MongoUserLedger backs UserLedger with a Mongo collection keyed by user id.
type MongoUserLedger struct {
	coll *mongo.Collection
}

func NewMongoUserLedger(db *mongo.Database) *MongoUserLedger {
	return &MongoUserLedger{coll: db.Collection("ledger")}
}

func (l *MongoUserLedger) Ensure(ctx context.Context, id, role string) (*models.UserRecord, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"role":       role,
			"points":     0,
			"level":      1,
			"version":    int64(1),
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var record models.UserRecord
	if err := l.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (l *MongoUserLedger) Get(ctx context.Context, id string) (*models.UserRecord, error) {
	var record models.UserRecord
	err := l.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (l *MongoUserLedger) Update(ctx context.Context, record *models.UserRecord) error {
	filter := bson.M{"_id": record.ID, "version": record.Version}

	record.Version++
	record.UpdatedAt = time.Now().UTC()

	result, err := l.coll.ReplaceOne(ctx, filter, record)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		count, err := l.coll.CountDocuments(ctx, bson.M{"_id": record.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (l *MongoUserLedger) All(ctx context.Context) ([]models.UserRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := l.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.UserRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
