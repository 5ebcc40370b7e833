// Package redis implements store.Store on Redis using go-redis/v9.
//
// Each job is a Hash. Every (type, status) pair has a Sorted Set index
// scored by the store-wide insertion sequence, so the pending index of a
// type doubles as its FIFO queue. Claiming and every status transition run
// as Lua scripts, which makes them atomic on the server.
//
// The caller owns the client lifecycle; Close never closes it:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
