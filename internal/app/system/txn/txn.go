// internal/app/system/txn/txn.go

// Package txn runs multi-document mutations inside a MongoDB transaction.
//
// Transactions require a replica set (or mongos). Development and test
// environments often run a standalone mongod, so Run falls back to executing
// the callback without a transaction when the server reports transactions as
// unsupported. Callers must therefore keep their per-document precondition
// guards (conditional update filters) authoritative; the transaction adds
// all-or-nothing batching on top, it does not replace the guards.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Run executes fn inside a MongoDB transaction. If the deployment does not
// support transactions, fn runs once without one.
//
// fn receives a context that must be passed to every store call inside the
// transaction so the driver binds the operations to the session.
func Run(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)

	if err != nil && IsNotSupported(err) {
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the MongoDB deployment does
// not support sessions/transactions (e.g. a standalone server).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	if cmdErr, ok := err.(mongo.CommandError); ok {
		switch cmdErr.Code {
		case 20, 51, 263: // IllegalOperation variants for non-replica-set servers
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set") {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "session") {
		return true
	}
	if strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction") {
		return true
	}
	return false
}
