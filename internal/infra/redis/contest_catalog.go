package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"contest-grading-service/internal/domain"
	"contest-grading-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContestCatalog caches contests in Redis and falls back to a loader on cache miss.
// The contest header is stored as:  HSET contest:{contestID} meta {json} count {n}
// Questions are stored as:          HSET contest:{contestID}:questions {questionID} {json}
// A Redis outage degrades to the loader instead of failing the request.
type ContestCatalog struct {
	client *redis.Client
	loader memory.ContestLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewContestCatalog(client *redis.Client, loader memory.ContestLoader, ttl time.Duration) *ContestCatalog {
	return &ContestCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContestCatalog) Contest(ctx context.Context, contestID string) (domain.Contest, error) {
	if contest, ok := c.fromCache(ctx, contestID); ok {
		return contest, nil
	}

	result, err, _ := c.sf.Do(contestID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if contest, ok := c.fromCache(ctx, contestID); ok {
			return contest, nil
		}

		contest, err := c.loader.LoadContest(ctx, contestID)
		if err != nil {
			return domain.Contest{}, err
		}
		contest.Questions = domain.SortQuestions(contest.Questions)
		c.store(ctx, contest)
		return contest, nil
	})
	if err != nil {
		return domain.Contest{}, err
	}
	return result.(domain.Contest), nil
}

func (c *ContestCatalog) QuestionsByContest(ctx context.Context, contestID string) ([]domain.Question, error) {
	contest, err := c.Contest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return contest.Questions, nil
}

// Invalidate drops the cached copy so the next read goes to the loader.
func (c *ContestCatalog) Invalidate(ctx context.Context, contestID string) error {
	if err := c.client.Del(ctx, c.metaKey(contestID), c.questionsKey(contestID)).Err(); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

func (c *ContestCatalog) fromCache(ctx context.Context, contestID string) (domain.Contest, bool) {
	header, err := c.client.HMGet(ctx, c.metaKey(contestID), "meta", "count").Result()
	if err != nil {
		return domain.Contest{}, false
	}
	raw, ok := header[0].(string)
	if !ok {
		return domain.Contest{}, false
	}
	countRaw, _ := header[1].(string)
	count, err := strconv.Atoi(countRaw)
	if err != nil {
		return domain.Contest{}, false
	}
	var contest domain.Contest
	if err := json.Unmarshal([]byte(raw), &contest); err != nil {
		return domain.Contest{}, false
	}

	fields, err := c.client.HGetAll(ctx, c.questionsKey(contestID)).Result()
	if err != nil {
		return domain.Contest{}, false
	}
	// the two keys can be evicted or expire apart; a partial set is a miss
	if len(fields) != count {
		return domain.Contest{}, false
	}
	questions := make([]domain.Question, 0, len(fields))
	for _, rawQuestion := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(rawQuestion), &q); err != nil {
			return domain.Contest{}, false
		}
		questions = append(questions, q)
	}
	contest.Questions = domain.SortQuestions(questions)
	return contest, true
}

func (c *ContestCatalog) store(ctx context.Context, contest domain.Contest) {
	header := contest
	header.Questions = nil
	meta, err := json.Marshal(header)
	if err != nil {
		return
	}

	metaKey, questionsKey := c.metaKey(contest.ID), c.questionsKey(contest.ID)
	ttl := c.ttlWithJitter()
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, questionsKey)
	for _, q := range contest.Questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return
		}
		pipe.HSet(ctx, questionsKey, q.ID, raw)
	}
	pipe.HSet(ctx, metaKey, "meta", meta, "count", len(contest.Questions))
	if ttl > 0 {
		pipe.Expire(ctx, metaKey, ttl)
		pipe.Expire(ctx, questionsKey, ttl)
	}
	// best effort: a failed write only costs another load
	_, _ = pipe.Exec(ctx)
}

func (c *ContestCatalog) metaKey(contestID string) string {
	return "contest:" + contestID
}

func (c *ContestCatalog) questionsKey(contestID string) string {
	return "contest:" + contestID + ":questions"
}

func (c *ContestCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
