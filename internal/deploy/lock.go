package deploy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusy другая операция развёртывания уже выполняется для этого сайта
var ErrBusy = errors.New("another deployment operation is in progress")

// ZoneLocker взаимное исключение операций развёртывания в пределах сайта.
// TryLock не ждёт: занятая блокировка возвращает ErrBusy.
type ZoneLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker блокировка в пределах одного процесса
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker создаёт новый экземпляр LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryLock захватывает ключ или возвращает ErrBusy
func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrBusy
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript снимает блокировку, только если она принадлежит владельцу
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// DefaultLockTTL время жизни распределённой блокировки
const DefaultLockTTL = 2 * time.Minute

// RedisLocker распределённая блокировка на SET NX с ограниченным временем жизни
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocker создаёт новый экземпляр RedisLocker
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// TryLock захватывает ключ или возвращает ErrBusy
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	token, err := lockToken()
	if err != nil {
		return nil, err
	}
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// контекст операции к этому моменту может быть отменён
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			l.client.Eval(releaseCtx, releaseScript, []string{key}, token)
		})
	}, nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
