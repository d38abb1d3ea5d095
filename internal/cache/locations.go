// Package cache keeps the latest position of every worker in Redis so the
// admin map does not have to scan the location log. All methods are no-ops
// on a nil client and callers fall back to the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the hash holding one JSON-encoded location per worker.
const DefaultKey = "fieldstock:locations:latest"

// putNewer stores a location only if it is newer (by row ID) than the cached
// one, so out-of-order writers cannot move a worker back in time.
var putNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
  local id = tonumber(cjson.decode(cur)['id'])
  if id and id >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

// fillNewer loads a database snapshot (field, id, data triples after the
// cutoff) with the same newer-wins rule as putNewer. Cached workers missing
// from the snapshot are dropped unless their entry is newer than the snapshot
// itself, which means a Put landed after the database was read.
var fillNewer = redis.NewScript(`
local cutoff = tonumber(ARGV[1])
local keep = {}
for i = 2, #ARGV, 3 do
  keep[ARGV[i]] = true
end
local cached = redis.call('HGETALL', KEYS[1])
for i = 1, #cached, 2 do
  if not keep[cached[i]] then
    local id = tonumber(cjson.decode(cached[i+1])['id'])
    if not id or id <= cutoff then
      redis.call('HDEL', KEYS[1], cached[i])
    end
  end
end
for i = 2, #ARGV, 3 do
  local cur = redis.call('HGET', KEYS[1], ARGV[i])
  local stale = true
  if cur then
    local id = tonumber(cjson.decode(cur)['id'])
    if id and id >= tonumber(ARGV[i+1]) then
      stale = false
    end
  end
  if stale then
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+2])
  end
end
redis.call('SET', KEYS[2], '1')
return 1
`)

// Connect opens a client and checks it can reach the server.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Locations is the latest-location cache.
type Locations struct {
	rdb *redis.Client
	key string
}

// NewLocations returns a cache backed by rdb, which may be nil.
func NewLocations(rdb *redis.Client, key string) *Locations {
	if key == "" {
		key = DefaultKey
	}
	return &Locations{rdb: rdb, key: key}
}

// Enabled reports whether a Redis client is configured.
func (c *Locations) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Locations) primedKey() string {
	return c.key + ":primed"
}

// Put records loc as its worker's latest position.
func (c *Locations) Put(ctx context.Context, loc *model.Location) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encoding location: %w", err)
	}
	err = putNewer.Run(ctx, c.rdb, []string{c.key},
		strconv.FormatInt(loc.WorkerID, 10), loc.ID, data,
	).Err()
	if err != nil {
		return fmt.Errorf("caching location: %w", err)
	}
	return nil
}

// Fill loads locs, the latest row per worker read from the database, and
// marks the cache complete. An entry Put after that read is newer than
// anything in locs and survives.
func (c *Locations) Fill(ctx context.Context, locs []model.Location) error {
	if !c.Enabled() {
		return nil
	}

	var cutoff int64
	args := make([]any, 1, 1+3*len(locs))
	for i := range locs {
		data, err := json.Marshal(&locs[i])
		if err != nil {
			return fmt.Errorf("encoding location: %w", err)
		}
		cutoff = max(cutoff, locs[i].ID)
		args = append(args, strconv.FormatInt(locs[i].WorkerID, 10), locs[i].ID, data)
	}
	args[0] = cutoff

	if err := fillNewer.Run(ctx, c.rdb, []string{c.key, c.primedKey()}, args...).Err(); err != nil {
		return fmt.Errorf("filling location cache: %w", err)
	}
	return nil
}

// All returns every cached location. ok is false when the cache is disabled
// or has not been filled since Redis last lost its data; the caller should
// then read the database and call Fill.
func (c *Locations) All(ctx context.Context) (locs []model.Location, ok bool, err error) {
	if !c.Enabled() {
		return nil, false, nil
	}

	n, err := c.rdb.Exists(ctx, c.primedKey()).Result()
	if err != nil {
		return nil, false, fmt.Errorf("checking location cache: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	entries, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reading location cache: %w", err)
	}

	locs = make([]model.Location, 0, len(entries))
	for field, raw := range entries {
		var l model.Location
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, false, fmt.Errorf("decoding cached location for worker %s: %w", field, err)
		}
		locs = append(locs, l)
	}
	return locs, true, nil
}

// Forget drops a worker, e.g. after the account is deleted.
func (c *Locations) Forget(ctx context.Context, workerID int64) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.rdb.HDel(ctx, c.key, strconv.FormatInt(workerID, 10)).Err(); err != nil {
		return fmt.Errorf("evicting cached location: %w", err)
	}
	return nil
}
