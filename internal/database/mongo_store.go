package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	client      *mongo.Client
	database    *mongo.Database
	caseData    *mongo.Collection
	schemasColl *mongo.Collection
}

// NewMongoStore creates a new MongoStore with the given connection string and database name.
func NewMongoStore(ctx context.Context, connectionString, dbName string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(connectionString)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:      client,
		database:    db,
		caseData:    db.Collection("case_data"),
		schemasColl: db.Collection("schemas"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates the unique (caseId, version) index that turns
// concurrent appends of the same version into duplicate key errors.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.caseData.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "caseId", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CaseDataStore Implementation

// AppendVersion stores a new version of a case's data. Version N is only
// accepted on top of an existing version N-1.
func (s *MongoStore) AppendVersion(ctx context.Context, data *CaseData) error {
	if data.Version > 1 {
		n, err := s.caseData.CountDocuments(ctx,
			bson.M{"caseId": data.CaseID, "version": data.Version - 1},
			options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrVersionConflict
		}
	}

	if data.ID == "" {
		data.ID = primitive.NewObjectID().Hex()
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	_, err := s.caseData.InsertOne(ctx, data)
	if mongo.IsDuplicateKeyError(err) {
		return ErrVersionConflict
	}
	return err
}

// GetLatest retrieves the highest version of a case's data.
func (s *MongoStore) GetLatest(ctx context.Context, caseID string) (*CaseData, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	return s.findOne(ctx, bson.M{"caseId": caseID}, opts)
}

// GetVersion retrieves a specific version of a case's data.
func (s *MongoStore) GetVersion(ctx context.Context, caseID string, version int) (*CaseData, error) {
	return s.findOne(ctx, bson.M{"caseId": caseID, "version": version})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*CaseData, error) {
	var data CaseData
	err := s.caseData.FindOne(ctx, filter, opts...).Decode(&data)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &data, nil
}

// ListVersions retrieves a paginated list of a case's versions, oldest first.
func (s *MongoStore) ListVersions(ctx context.Context, caseID string, offset, limit int) ([]*CaseData, error) {
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "version", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.caseData.Find(ctx, bson.M{"caseId": caseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	versions := []*CaseData{}
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// DeleteCase removes every version of a case.
func (s *MongoStore) DeleteCase(ctx context.Context, caseID string) error {
	result, err := s.caseData.DeleteMany(ctx, bson.M{"caseId": caseID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SchemaProvider Implementation

type schemaDoc struct {
	ID      string `bson:"_id"`
	Content string `bson:"content"`
}

// GetSchema retrieves a schema by name from MongoDB.
func (s *MongoStore) GetSchema(ctx context.Context, name string) (string, error) {
	var doc schemaDoc
	err := s.schemasColl.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrSchemaNotFound
		}
		return "", err
	}
	return doc.Content, nil
}

// ListSchemas retrieves all schemas from MongoDB.
func (s *MongoStore) ListSchemas(ctx context.Context) ([]*Schema, error) {
	cursor, err := s.schemasColl.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []schemaDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	schemas := make([]*Schema, 0, len(docs))
	for _, doc := range docs {
		schemas = append(schemas, &Schema{Name: doc.ID, Schema: json.RawMessage(doc.Content)})
	}
	return schemas, nil
}

// CreateSchema saves a schema to MongoDB, replacing any existing one.
func (s *MongoStore) CreateSchema(ctx context.Context, name, content string) error {
	_, err := s.schemasColl.UpdateOne(
		ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"content": content}},
		options.Update().SetUpsert(true),
	)
	return err
}

// DeleteSchema removes a schema from MongoDB.
func (s *MongoStore) DeleteSchema(ctx context.Context, name string) error {
	_, err := s.schemasColl.DeleteOne(ctx, bson.M{"_id": name})
	return err
}
