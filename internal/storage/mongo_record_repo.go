package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for MongoDB record repository.
type MongoConfig struct {
	URI        string `yaml:"uri"`        // e.g. mongodb://localhost:27017
	Database   string `yaml:"database"`   // e.g. borders
	Collection string `yaml:"collection"` // e.g. border_records
}

// MongoRecordRepo implements RecordRepo on MongoDB backend.
// Each region is one document keyed by _id = region id.
type MongoRecordRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongoRecordRepo establishes connection and returns repository.
func NewMongoRecordRepo(cfg MongoConfig) (*MongoRecordRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "borders"
	}
	if cfg.Collection == "" {
		cfg.Collection = "border_records"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &MongoRecordRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}, nil
}

// Load fetches a record by region id.
func (m *MongoRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var rec border.Record
	err := m.collection.FindOne(ctx, bson.M{"_id": regionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return border.Record{}, false, nil
	}
	if err != nil {
		return border.Record{}, false, fmt.Errorf("mongo find %s: %w", regionID, err)
	}
	return rec, true, nil
}

// LoadAll returns every stored record.
func (m *MongoRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	cur, err := m.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find all: %w", err)
	}
	defer cur.Close(ctx)

	var out []border.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return out, nil
}

// Save upserts a record.
func (m *MongoRecordRepo) Save(ctx context.Context, rec border.Record) error {
	if err := validateID(rec.RegionID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": rec.RegionID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", rec.RegionID, err)
	}
	return nil
}

// BatchSave upserts records with one bulk write.
func (m *MongoRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		if err := validateID(rec.RegionID); err != nil {
			return err
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.RegionID}).
			SetReplacement(rec).
			SetUpsert(true))
	}
	if _, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo bulk write: %w", err)
	}
	return nil
}

// Delete removes a record.
func (m *MongoRecordRepo) Delete(ctx context.Context, regionID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": regionID}); err != nil {
		return fmt.Errorf("mongo delete %s: %w", regionID, err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoRecordRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
