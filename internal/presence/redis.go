// Package presence mirrors live room membership into Redis so operational
// tooling (and a future multi-server deployment) can see who is in which room
// without asking the in-memory session store.
package presence

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// mirrorTTL 방이 비정상 종료로 정리되지 않아도 키가 영원히 남지 않게 한다
const mirrorTTL = 24 * time.Hour

// Mirror Redis 기반 방 인원 미러. nil receiver도 동작한다 (Redis 비활성 시).
type Mirror struct {
	client *redis.Client
}

// NewMirror connects to Redis. Call sites treat a nil *Mirror as "disabled".
func NewMirror(addr, password string, db int) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &Mirror{client: client}, nil
}

func roomKey(roomID string) string {
	return "room:" + roomID + ":members"
}

// UserJoined 방 입장 미러링. 실패해도 세션 동작에는 영향 없음 (best-effort).
func (m *Mirror) UserJoined(ctx context.Context, roomID, username string) {
	if m == nil {
		return
	}

	key := roomKey(roomID)
	if err := m.client.SAdd(ctx, key, username).Err(); err != nil {
		log.Printf("[Redis] Failed to mirror join of %s to %s: %v", username, roomID, err)
		return
	}
	m.client.Expire(ctx, key, mirrorTTL)
}

// UserLeft 방 퇴장 미러링
func (m *Mirror) UserLeft(ctx context.Context, roomID, username string) {
	if m == nil {
		return
	}

	if err := m.client.SRem(ctx, roomKey(roomID), username).Err(); err != nil {
		log.Printf("[Redis] Failed to mirror leave of %s from %s: %v", username, roomID, err)
	}
}

// RoomClosed drops the whole member set when a session is evicted.
func (m *Mirror) RoomClosed(ctx context.Context, roomID string) {
	if m == nil {
		return
	}

	if err := m.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		log.Printf("[Redis] Failed to drop member set for room %s: %v", roomID, err)
	}
}

// RoomMembers 미러에 기록된 방 인원 조회
func (m *Mirror) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	return m.client.SMembers(ctx, roomKey(roomID)).Result()
}

// Health checks if Redis is reachable.
func (m *Mirror) Health(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
