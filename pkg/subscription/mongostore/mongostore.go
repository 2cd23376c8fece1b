// Package mongostore keeps subscription records in a MongoDB collection,
// one document per user keyed by the user id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

// DefaultCollection is used when New gets an empty name.
const DefaultCollection = "subscriptions"

type document struct {
	ID            string     `bson:"_id"`
	Tier          string     `bson:"tier"`
	Status        string     `bson:"status"`
	ExpiresAt     *time.Time `bson:"expires_at,omitempty"`
	CustomerID    string     `bson:"customer_id,omitempty"`
	ProviderSubID string     `bson:"provider_sub_id,omitempty"`
	Provider      string     `bson:"provider,omitempty"`
	EventAt       *time.Time `bson:"event_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func toDocument(rec *subscription.Record) document {
	return document{
		ID:            rec.UserID.String(),
		Tier:          string(rec.Tier),
		Status:        string(rec.Status),
		ExpiresAt:     rec.ExpiresAt,
		CustomerID:    rec.CustomerID,
		ProviderSubID: rec.ProviderSubID,
		Provider:      rec.Provider,
		EventAt:       rec.EventAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func (d document) record() (*subscription.Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", d.ID, err)
	}
	rec := &subscription.Record{
		UserID:        id,
		Tier:          subscription.Tier(d.Tier),
		Status:        subscription.Status(d.Status),
		ExpiresAt:     d.ExpiresAt,
		CustomerID:    d.CustomerID,
		ProviderSubID: d.ProviderSubID,
		Provider:      d.Provider,
		EventAt:       d.EventAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	rec.Normalize()
	return rec, nil
}

// Store implements subscription.Store.
type Store struct {
	coll *mongo.Collection
}

var _ subscription.Store = (*Store)(nil)

// New panics if db is nil.
func New(db *mongo.Database, collection string) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the customer_id lookup index used by webhooks.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "customer_id", Value: 1}},
		Options: options.Index().SetName("customer_id_idx").SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create customer_id index: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	rec, err := s.findOne(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", userID, err)
	}
	return rec, nil
}

func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*subscription.Record, error) {
	if customerID == "" {
		return nil, subscription.ErrRecordNotFound
	}
	rec, err := s.findOne(ctx, bson.M{"customer_id": customerID},
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("get subscription by customer %s: %w", customerID, err)
	}
	return rec, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*subscription.Record, error) {
	var doc document
	err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, subscription.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.record()
}

func (s *Store) Save(ctx context.Context, rec *subscription.Record) error {
	if rec == nil || rec.UserID == uuid.Nil {
		return subscription.ErrMissingUserReference
	}

	doc := toDocument(rec)
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", rec.UserID, err)
	}
	return nil
}
