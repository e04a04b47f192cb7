// internal/app/store/sequence/sequencestore.go

// Package sequencestore issues gapless-per-call, monotonically increasing
// sequence numbers backed by a counters collection. Each named counter is a
// single document bumped with an atomic findAndModify, so concurrent
// submissions never observe the same value.
package sequencestore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const applicationCounter = "application_number"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("counters")}
}

// Next atomically increments the named counter and returns the new value.
// The first call for a name returns 1.
func (s *Store) Next(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Value, nil
}

// NextApplicationNumber returns the next formatted application number,
// e.g. "ZKT-00000042".
func (s *Store) NextApplicationNumber(ctx context.Context) (string, error) {
	n, err := s.Next(ctx, applicationCounter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ZKT-%08d", n), nil
}
