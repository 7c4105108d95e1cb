package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"WChat/logger"
)

// presenceTTL is a crash backstop: if the process dies without running
// SessionDown, the key ages out instead of reporting online forever.
const presenceTTL = 24 * time.Hour

// Presence mirrors session up/down into redis so request-handling code can
// answer "is this user reachable" without touching the in-process registry.
// Delivery still goes through the registry only; this is observational.
type Presence struct {
	rdb *redis.Client
}

// Only delete the marker while it still belongs to the session going down;
// a replacement login must not be flipped offline by its predecessor.
var delIfOwned = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewPresence(addr, password string, db int) *Presence {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Presence{rdb: rdb}
}

func presenceKey(userID string) string { return "wchat:online:" + userID }

func (p *Presence) SessionUp(ctx context.Context, userID, sessionID string) {
	if err := p.rdb.Set(ctx, presenceKey(userID), sessionID, presenceTTL).Err(); err != nil {
		logger.Warnf("[presence] mark online user=%s: %v", userID, err)
	}
}

func (p *Presence) SessionDown(ctx context.Context, userID, sessionID string) {
	if err := delIfOwned.Run(ctx, p.rdb, []string{presenceKey(userID)}, sessionID).Err(); err != nil {
		logger.Warnf("[presence] mark offline user=%s: %v", userID, err)
	}
}

func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Presence) Close() error { return p.rdb.Close() }
