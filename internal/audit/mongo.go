package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

type mongoRecord struct {
	ID        string    `bson:"_id"`
	Entity    string    `bson:"entity"`
	EntityID  string    `bson:"entity_id"`
	Action    string    `bson:"action"`
	ActorID   string    `bson:"actor_id"`
	Before    bson.M    `bson:"before,omitempty"`
	After     bson.M    `bson:"after,omitempty"`
	IP        *string   `bson:"ip,omitempty"`
	UserAgent *string   `bson:"user_agent,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore keeps one domain's audit records in a collection named like the
// postgres table.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(ctx context.Context, client *mongo.Client, database string, domain types.AuditDomain) (*MongoStore, error) {
	name, ok := postgresTables[domain]
	if !ok {
		return nil, fmt.Errorf("unknown audit domain %q", domain)
	}
	coll := client.Database(database).Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "entity", Value: 1}, {Key: "entity_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create audit indexes: %w", err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Write(ctx context.Context, record types.AuditRecord) error {
	doc := mongoRecord{
		ID:        record.ID,
		Entity:    record.Entity,
		EntityID:  record.EntityID,
		Action:    string(record.Action),
		ActorID:   record.ActorID,
		Before:    toDocument(record.Before),
		After:     toDocument(record.After),
		IP:        record.IP,
		UserAgent: record.UserAgent,
		CreatedAt: record.CreatedAt,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) Query(ctx context.Context, filter types.AuditFilter, page types.Page) ([]types.AuditRecord, int, error) {
	query := bson.M{}
	if filter.Entity != "" {
		query["entity"] = filter.Entity
	}
	if filter.EntityID != "" {
		query["entity_id"] = filter.EntityID
	}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		query["action"] = string(filter.Action)
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["created_at"] = created
	}

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	records := []types.AuditRecord{}
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		records = append(records, types.AuditRecord{
			ID:        doc.ID,
			Entity:    doc.Entity,
			EntityID:  doc.EntityID,
			Action:    types.AuditAction(doc.Action),
			ActorID:   doc.ActorID,
			Before:    fromDocument(doc.Before),
			After:     fromDocument(doc.After),
			IP:        doc.IP,
			UserAgent: doc.UserAgent,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}
	return records, int(total), nil
}

func (s *MongoStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// toDocument turns a JSON object snapshot into a BSON document. Non-object
// snapshots are kept verbatim under "raw".
func toDocument(raw json.RawMessage) bson.M {
	if len(raw) == 0 {
		return nil
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return bson.M{"raw": string(raw)}
	}
	return doc
}

func fromDocument(doc bson.M) json.RawMessage {
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return b
}
