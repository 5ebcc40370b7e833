// Package mongo implements store.Store on MongoDB using mongo-driver/v2.
//
// Claims use FindOneAndUpdate filtered on status "pending" and sorted by
// (created_at, seq), so the server hands each pending document to exactly
// one caller. Transitions are status-filtered UpdateOne calls.
//
// The caller owns the *mongo.Client lifecycle; Close never disconnects it:
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(uri))
//	s := mongostore.New(client.Database("jobq"))
//	if err := s.Migrate(ctx); err != nil { ... }
package mongo
