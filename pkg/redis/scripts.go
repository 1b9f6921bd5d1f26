package redis

import "github.com/redis/go-redis/v9"

// fixedWindowScript increments a counter and starts its window on the first
// hit in one round trip, so a counter can never be left without a TTL.
// KEYS[1] counter, ARGV[1] window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// releaseLockScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendLockScript resets the TTL of KEYS[1] to ARGV[2] milliseconds only
// while it still holds ARGV[1].
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
