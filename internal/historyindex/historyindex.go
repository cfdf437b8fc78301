// Package historyindex implements the History Index (C14): an optional
// MongoDB-backed secondary cache of handoff records, mirroring the Handoff
// Store (refs/notes/tdd-handoffs). It exists purely to let the history and
// status CLI commands answer without walking git ancestry on long-lived
// repositories — Mongo is never the source of truth. Every Write here is a
// write-through: callers still write the notes ref first and only mirror
// into Mongo afterward, and any Read/FindLatest/ListAll miss or error here
// must be treated by the caller as "fall back to the Handoff Store", not as
// a hard failure.
package historyindex

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/tdd-orchestrator/tdd/internal/handoff"
	"github.com/tdd-orchestrator/tdd/internal/model"
)

const (
	defaultCollection = "tdd_handoffs"
	defaultTimeout    = 5 * time.Second
)

// collection narrows the concrete *mongo.Collection down to what Index
// needs, so tests can substitute a fake without dialing a real server.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	Indexes() mongo.IndexView
}

// Options configures a History Index.
type Options struct {
	// Client is an already-connected Mongo client. Required.
	Client *mongo.Client
	// Database names the database records live in. Required.
	Database string
	// Collection names the collection records live in. Defaults to
	// "tdd_handoffs".
	Collection string
	// Timeout bounds every individual Mongo operation. Defaults to 5s.
	Timeout time.Duration
}

// Index is a write-through secondary cache of handoff records.
type Index struct {
	client  *mongo.Client
	coll    collection
	timeout time.Duration
}

// document is the Mongo representation of a handoff.Record. CommitID is the
// natural key: Write upserts by CommitID, so re-attaching a record (the
// Handoff Store's own write semantics) never produces duplicates.
type document struct {
	CommitID  string            `bson:"commit_id"`
	State     model.HandoffState `bson:"state"`
	RecordedAt time.Time        `bson:"recorded_at"`
}

// New constructs an Index and ensures its indexes exist. Returns an error
// if Client or Database is unset.
func New(opts Options) (*Index, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("historyindex: client is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("historyindex: database is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	idx := &Index{client: opts.Client, coll: opts.Client.Database(opts.Database).Collection(coll), timeout: timeout}
	if err := idx.ensureIndexes(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	_, err := idx.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "commit_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "recorded_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("historyindex: ensure indexes: %w", err)
	}
	return nil
}

// Write upserts the record for commitID. Safe to call more than once for
// the same commit, matching the Handoff Store's overwrite-on-write semantics.
func (idx *Index) Write(ctx context.Context, commitID string, state model.HandoffState, now time.Time) error {
	if commitID == "" {
		return fmt.Errorf("historyindex: write requires a commit id")
	}
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	doc := document{CommitID: commitID, State: state, RecordedAt: now}
	_, err := idx.coll.ReplaceOne(ctx, bson.D{{Key: "commit_id", Value: commitID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("historyindex: write %s: %w", commitID, err)
	}
	return nil
}

// Read looks up the record for commitID. ok is false when no record exists;
// a lookup that could not be completed also returns ok false, together with
// a non-nil error.
func (idx *Index) Read(ctx context.Context, commitID string) (state model.HandoffState, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	var doc document
	rerr := idx.coll.FindOne(ctx, bson.D{{Key: "commit_id", Value: commitID}}).Decode(&doc)
	if rerr != nil {
		if rerr == mongo.ErrNoDocuments {
			return model.HandoffState{}, false, nil
		}
		return model.HandoffState{}, false, fmt.Errorf("historyindex: read %s: %w", commitID, rerr)
	}
	return doc.State, true, nil
}

// FindLatest returns the most recently written record, ordered by
// recorded_at rather than by walking git ancestry.
func (idx *Index) FindLatest(ctx context.Context) (handoff.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	var doc document
	err := idx.coll.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return handoff.Record{}, false, nil
		}
		return handoff.Record{}, false, fmt.Errorf("historyindex: find latest: %w", err)
	}
	return handoff.Record{CommitID: doc.CommitID, State: doc.State}, true, nil
}

// ListAll returns every cached record, most-recently-written first, for the
// history CLI command.
func (idx *Index) ListAll(ctx context.Context) ([]handoff.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	cur, err := idx.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("historyindex: list all: %w", err)
	}
	defer cur.Close(ctx)

	var records []handoff.Record
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("historyindex: decode record: %w", err)
		}
		records = append(records, handoff.Record{CommitID: doc.CommitID, State: doc.State})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("historyindex: list all: %w", err)
	}
	return records, nil
}

// Name identifies this component for health reporting.
func (idx *Index) Name() string { return "historyindex" }

// Ping verifies Mongo connectivity, used by a composite health check
// alongside the Workspace Lock and Durable Execution Adapter.
func (idx *Index) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()
	return idx.client.Ping(ctx, readpref.Primary())
}
