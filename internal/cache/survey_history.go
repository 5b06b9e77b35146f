package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SurveyHistory records which surveys each user has already been shown.
// A survey moves from not-shown to shown once and only Reset clears it.
type SurveyHistory interface {
	HasShown(ctx context.Context, userID, surveyID string) (bool, error)
	MarkShown(ctx context.Context, userID, surveyID string, at time.Time) error
	Shown(ctx context.Context, userID string) ([]string, error)
	// LastShownAt is the zero time when the user has never been shown a survey
	LastShownAt(ctx context.Context, userID string) (time.Time, error)
	Reset(ctx context.Context, userID string) error
}

type userHistory struct {
	shown map[string]time.Time
	last  time.Time
}

type memorySurveyHistory struct {
	mu    sync.RWMutex
	users map[string]*userHistory
}

// NewMemorySurveyHistory creates a process-lifetime history store
func NewMemorySurveyHistory() SurveyHistory {
	return &memorySurveyHistory{users: make(map[string]*userHistory)}
}

func (h *memorySurveyHistory) HasShown(_ context.Context, userID, surveyID string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u, ok := h.users[userID]
	if !ok {
		return false, nil
	}
	_, shown := u.shown[surveyID]
	return shown, nil
}

func (h *memorySurveyHistory) MarkShown(_ context.Context, userID, surveyID string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.users[userID]
	if !ok {
		u = &userHistory{shown: make(map[string]time.Time)}
		h.users[userID] = u
	}
	if _, exists := u.shown[surveyID]; !exists {
		u.shown[surveyID] = at
	}
	if at.After(u.last) {
		u.last = at
	}
	return nil
}

func (h *memorySurveyHistory) Shown(_ context.Context, userID string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := []string{}
	if u, ok := h.users[userID]; ok {
		for id := range u.shown {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (h *memorySurveyHistory) LastShownAt(_ context.Context, userID string) (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if u, ok := h.users[userID]; ok {
		return u.last, nil
	}
	return time.Time{}, nil
}

func (h *memorySurveyHistory) Reset(_ context.Context, userID string) error {
	h.mu.Lock()
	delete(h.users, userID)
	h.mu.Unlock()
	return nil
}

type redisSurveyHistory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSurveyHistory creates a history store that survives restarts.
// A ttl of zero keeps history forever.
func NewRedisSurveyHistory(client *redis.Client, ttl time.Duration) SurveyHistory {
	return &redisSurveyHistory{
		client: client,
		ttl:    ttl,
	}
}

// Key helpers
func (h *redisSurveyHistory) shownKey(userID string) string {
	return fmt.Sprintf("user:%s:surveys:shown", userID)
}

func (h *redisSurveyHistory) lastKey(userID string) string {
	return fmt.Sprintf("user:%s:surveys:last", userID)
}

func (h *redisSurveyHistory) HasShown(ctx context.Context, userID, surveyID string) (bool, error) {
	return h.client.SIsMember(ctx, h.shownKey(userID), surveyID).Result()
}

func (h *redisSurveyHistory) MarkShown(ctx context.Context, userID, surveyID string, at time.Time) error {
	pipe := h.client.TxPipeline()
	pipe.SAdd(ctx, h.shownKey(userID), surveyID)
	pipe.Set(ctx, h.lastKey(userID), at.UnixMilli(), h.ttl)
	if h.ttl > 0 {
		pipe.Expire(ctx, h.shownKey(userID), h.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (h *redisSurveyHistory) Shown(ctx context.Context, userID string) ([]string, error) {
	ids, err := h.client.SMembers(ctx, h.shownKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (h *redisSurveyHistory) LastShownAt(ctx context.Context, userID string) (time.Time, error) {
	val, err := h.client.Get(ctx, h.lastKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last shown for %s: %w", userID, err)
	}
	return time.UnixMilli(ms), nil
}

func (h *redisSurveyHistory) Reset(ctx context.Context, userID string) error {
	return h.client.Del(ctx, h.shownKey(userID), h.lastKey(userID)).Err()
}
