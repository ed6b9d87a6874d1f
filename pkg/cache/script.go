package cache

import "github.com/redis/go-redis/v9"

// deleteByPatternScript walks the keyspace with SCAN and deletes every match.
// ARGV[1] is the MATCH pattern, ARGV[2] the SCAN COUNT hint. Each SCAN batch
// runs atomically; the walk as a whole does not.
var deleteByPatternScript = redis.NewScript(`
local cursor = "0"
local pattern = ARGV[1]
local batch = tonumber(ARGV[2]) or 100
local count = 0

repeat
	local result = redis.call('SCAN', cursor, 'MATCH', pattern, 'COUNT', batch)
	cursor = result[1]
	for _, key in ipairs(result[2]) do
		count = count + redis.call('DEL', key)
	end
until cursor == "0"

return count
`)
