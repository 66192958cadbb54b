package flareauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flareauth/flareauth/notify"
	"github.com/redis/go-redis/v9"
)

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]User
	byEmail map[string]string

	getErr    error
	createErr error
	updateErr error

	createCalls int
	updateCalls int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:   map[string]User{},
		byEmail: map[string]string{},
	}
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return User{}, false, s.getErr
	}
	id, ok := s.byEmail[email]
	if !ok {
		return User{}, false, nil
	}
	return s.users[id], true, nil
}

func (s *fakeUserStore) GetUserByID(_ context.Context, userID string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return User{}, false, s.getErr
	}
	user, ok := s.users[userID]
	return user, ok, nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *fakeUserStore) UpdateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *fakeUserStore) user(t *testing.T, userID string) User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		t.Fatalf("user %q not found in fake store", userID)
	}
	return user
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, store UserStore, cfg Config) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// signUpTestUser registers a user through the real flow and returns its ID.
func signUpTestUser(t *testing.T, engine *Engine, email, phone, password string) string {
	t.Helper()

	result, err := engine.SignUp(context.Background(), email, phone, password)
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	return result.UserID
}

const testPassword = "Sunlit-Harbor-42"

func deviceCtx(userAgent string) context.Context {
	ctx := WithClientIP(context.Background(), "198.51.100.7")
	return WithUserAgent(ctx, userAgent)
}

// consumeTask drains the channel queue until a task with the wanted template
// appears, acking everything else along the way.
func consumeTask(t *testing.T, engine *Engine, channel notify.Channel, template string) *notify.Task {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		task, err := engine.Queue().Consume(ctx, channel)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if task.Template == template {
			return task
		}
		if err := engine.Queue().Ack(ctx, task); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
	}
}

func waitForAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}
