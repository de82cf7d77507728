package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

// ErrSync — эндпоинт времени недоступен или ответ битый. Предыдущий
// offset при этом сохраняется, торговая логика продолжает жить на нём.
var ErrSync = fmt.Errorf("timesync: server time unavailable")

type State int

const (
	StateUnsynced State = iota
	StateSynced
	StateStale
)

func (s State) String() string {
	switch s {
	case StateSynced:
		return "synced"
	case StateStale:
		return "stale"
	default:
		return "unsynced"
	}
}

// ServerTimeFunc возвращает время биржи в миллисекундах epoch.
type ServerTimeFunc func(ctx context.Context) (int64, error)

// Clock держит offset = serverTime - localTime и отдаёт скорректированные
// таймстемпы для подписанных запросов. Все мутации под одним мьютексом,
// сетевой вызов тоже под ним — две синхронизации никогда не идут параллельно.
type Clock struct {
	mu      sync.Mutex
	fetch   ServerTimeFunc
	now     func() time.Time
	timeout time.Duration
	maxAge  time.Duration

	offsetMs int64
	latency  time.Duration
	syncedAt time.Time
}

func NewClock(fetch ServerTimeFunc, maxAge time.Duration) *Clock {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &Clock{
		fetch:   fetch,
		now:     time.Now,
		timeout: 5 * time.Second,
		maxAge:  maxAge,
	}
}

// Sync меряет round-trip вокруг запроса времени и пересчитывает offset:
// offset = serverTime - (sentAt + rtt/2). При ошибке старый offset остаётся.
func (c *Clock) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncLocked(ctx)
}

func (c *Clock) syncLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sentAt := c.now()
	serverMs, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSync, err)
	}
	recvAt := c.now()

	latency := recvAt.Sub(sentAt) / 2
	localMs := sentAt.UnixMilli() + latency.Milliseconds()

	old := c.offsetMs
	c.offsetMs = serverMs - localMs
	c.latency = latency
	c.syncedAt = recvAt

	logger.Info("time offset updated: %dms -> %dms (latency %s)", old, c.offsetMs, latency)
	return nil
}

// Timestamp — localTime + offset в миллисекундах. Если offset протух
// (старше maxAge) или его ещё не было, сперва один Sync; неудача
// логируется, запрос уходит на устаревшем offset'е.
func (c *Clock) Timestamp(ctx context.Context) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != StateSynced {
		if err := c.syncLocked(ctx); err != nil {
			logger.Error("time sync failed, keeping previous offset %dms: %v", c.offsetMs, err)
		}
	}
	return c.now().UnixMilli() + c.offsetMs
}

// ForceSync — безусловная синхронизация. Дёргается перед ордерами,
// балансом и в ретрае после -1021.
func (c *Clock) ForceSync(ctx context.Context) error {
	return c.Sync(ctx)
}

func (c *Clock) stateLocked() State {
	if c.syncedAt.IsZero() {
		return StateUnsynced
	}
	if c.now().Sub(c.syncedAt) > c.maxAge {
		return StateStale
	}
	return StateSynced
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Clock) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.offsetMs) * time.Millisecond
}

func (c *Clock) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

func (c *Clock) LastSyncAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncedAt
}
