//go:build integration

package mongo_test

import (
	"context"
	"os"
	"testing"

	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/store"
	mongostore "github.com/xraph/jobq/store/mongo"
	"github.com/xraph/jobq/store/storetest"
)

// newClient connects to the server named by JOBQ_MONGO_URI.
func newClient(t *testing.T) *mongod.Client {
	t.Helper()
	uri := os.Getenv("JOBQ_MONGO_URI")
	if uri == "" {
		t.Skip("JOBQ_MONGO_URI not set")
	}

	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

func TestConformance(t *testing.T) {
	client := newClient(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		db := client.Database("jobq_test_" + id.NewJobID().String())
		t.Cleanup(func() { _ = db.Drop(ctx) })

		s := mongostore.New(db)
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return s
	})
}
