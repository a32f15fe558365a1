package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiz-ledger-service/internal/domain"
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard is a cross-instance submission lock: SET NX with a TTL so a crashed
// holder cannot block the student forever.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Guard{client: client, ttl: ttl}
}

func (g *Guard) Acquire(ctx context.Context, studentID, quizID string) (func(), error) {
	key := guardKey(studentID, quizID)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrConcurrentSubmission
	}
	return func() {
		// the request context may already be cancelled; release regardless
		_ = releaseScript.Run(context.Background(), g.client, []string{key}, token).Err()
	}, nil
}

func guardKey(studentID, quizID string) string {
	return "lock:submission:" + quizID + ":" + studentID
}
