package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/store"
)

// Collection name constants.
const (
	colJobs     = "jobq_jobs"
	colCounters = "jobq_counters"
)

// counterJobs is the counters document holding the job insertion sequence.
const counterJobs = "jobs"

// Compile-time interface checks.
var (
	_ job.Store   = (*Store)(nil)
	_ store.Store = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store.
// The caller owns the client lifecycle; Store never disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store on db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

func (s *Store) jobs() *mongod.Collection { return s.db.Collection(colJobs) }

// Migrate creates the indexes used by claims, scans and purges.
func (s *Store) Migrate(ctx context.Context) error {
	models := []mongod.IndexModel{
		// Claim and range index.
		{Keys: bson.D{
			{Key: "type", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "seq", Value: 1},
		}},
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "finished_at", Value: 1}}},
	}

	if _, err := s.jobs().Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("jobq/mongo: migrate %s indexes: %w", colJobs, err)
	}
	s.logger.Info("ensured indexes", slog.String("collection", colJobs))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.Client().Ping(ctx, nil))
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time truncated to MongoDB's millisecond
// precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// nextSeq atomically increments and returns the job insertion sequence.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var c counterModel
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": counterJobs},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, err
	}
	return c.Seq, nil
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// wrap reports a MongoDB failure as a *jobq.StoreError.
func wrap(op string, err error) error {
	return jobq.NewStoreError("mongo."+op, err)
}
