package redis

import goredis "github.com/redis/go-redis/v9"

// insertScript stores a new job Hash and appends it to its pending index.
//
// KEYS[1] job hash, KEYS[2] sequence counter, KEYS[3] pending index.
// ARGV[1] job ID, ARGV[2..] field/value pairs.
// Returns the assigned sequence, or -1 when the job already exists.
var insertScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -1
end
local seq = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'seq', seq, unpack(ARGV, 2))
redis.call('ZADD', KEYS[3], seq, ARGV[1])
return seq
`)

// claimScript pops the oldest pending job of a type and marks it active.
//
// KEYS[1] pending index, KEYS[2] active index.
// ARGV[1] key prefix, ARGV[2] worker ID, ARGV[3] timestamp.
// Returns the claimed job ID, or nil when the queue is empty.
//
// The job hash key is only known after the pop, so the script builds it
// from ARGV[1]. On Redis Cluster the prefix must carry a hash tag (see
// WithPrefix) so that key lands in the same slot as KEYS.
var claimScript = goredis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
	return false
end
local id = popped[1]
local seq = popped[2]
redis.call('HSET', ARGV[1] .. 'job:' .. id,
	'status', 'active',
	'worker_id', ARGV[2],
	'started_at', ARGV[3],
	'updated_at', ARGV[3])
redis.call('ZADD', KEYS[2], seq, id)
return id
`)

// finishScript moves an active job to a terminal status.
//
// KEYS[1] job hash, KEYS[2] active index, KEYS[3] target index,
// KEYS[4] finished index.
// ARGV[1] target status, ARGV[2] field to set (result or error), ARGV[3]
// its value, ARGV[4] timestamp, ARGV[5] finish time in unix milliseconds.
// Returns the status observed before the call, or "" when the job is missing.
var finishScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return ''
end
if status ~= 'active' then
	return status
end
local id = redis.call('HGET', KEYS[1], 'id')
local seq = redis.call('HGET', KEYS[1], 'seq')
redis.call('HSET', KEYS[1],
	'status', ARGV[1],
	ARGV[2], ARGV[3],
	'finished_at', ARGV[4],
	'updated_at', ARGV[4])
redis.call('ZREM', KEYS[2], id)
redis.call('ZADD', KEYS[3], seq, id)
redis.call('ZADD', KEYS[4], ARGV[5], id)
return status
`)

// progressScript records progress on an active job.
//
// KEYS[1] job hash.
// ARGV[1] completed, ARGV[2] total, ARGV[3] label, ARGV[4] timestamp.
// Returns the current status, or "" when the job is missing.
var progressScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return ''
end
if status ~= 'active' then
	return status
end
redis.call('HSET', KEYS[1],
	'progress_completed', ARGV[1],
	'progress_total', ARGV[2],
	'progress_label', ARGV[3],
	'updated_at', ARGV[4])
return status
`)
