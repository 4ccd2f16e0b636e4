package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"contest-grading-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContestLoader fetches contest content from a backing store (e.g., Postgres).
type ContestLoader interface {
	LoadContest(ctx context.Context, contestID string) (domain.Contest, error)
}

// ContestCatalog caches contests with TTL to avoid repeated DB hits. It serves
// both the contest window and the question set.
type ContestCatalog struct {
	loader ContestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedContest
}

type cachedContest struct {
	contest   domain.Contest
	expiresAt time.Time
}

func NewContestCatalog(loader ContestLoader, ttl time.Duration) *ContestCatalog {
	return &ContestCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContest),
	}
}

func (c *ContestCatalog) Contest(ctx context.Context, contestID string) (domain.Contest, error) {
	if contest, ok := c.cached(contestID); ok {
		return contest, nil
	}

	result, err, _ := c.sf.Do(contestID, func() (interface{}, error) {
		if contest, ok := c.cached(contestID); ok {
			return contest, nil
		}

		contest, err := c.loader.LoadContest(ctx, contestID)
		if err != nil {
			return domain.Contest{}, err
		}
		contest.Questions = domain.SortQuestions(contest.Questions)

		c.mu.Lock()
		c.cache[contestID] = cachedContest{
			contest:   contest,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
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

func (c *ContestCatalog) cached(contestID string) (domain.Contest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[contestID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Contest{}, false
	}
	return entry.contest, true
}

func (c *ContestCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticContestLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticContestLoader struct {
	contests map[string]domain.Contest
}

func NewStaticContestLoader(contests map[string]domain.Contest) *StaticContestLoader {
	return &StaticContestLoader{contests: contests}
}

func (l *StaticContestLoader) LoadContest(_ context.Context, contestID string) (domain.Contest, error) {
	if contest, ok := l.contests[contestID]; ok {
		return contest, nil
	}
	return domain.Contest{}, domain.NotFound("contest", contestID)
}
