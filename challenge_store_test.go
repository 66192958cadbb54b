package flareauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestChallenge(userID, code string, ttl time.Duration) *challengeRecord {
	now := time.Now()
	return &challengeRecord{
		ChallengeID: uuid.NewString(),
		UserID:      userID,
		Method:      MethodEmail,
		CodeHash:    hashChallengeCode(code),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
		Status:      challengePending,
	}
}

func codeMatcher(code string) challengeMatcher {
	presented := hashChallengeCode(code)
	return func(record *challengeRecord) bool {
		return subtle.ConstantTimeCompare(presented[:], record.CodeHash[:]) == 1
	}
}

func TestChallengeStoreCreateGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", 5*time.Minute)
	if err := store.Create(ctx, record, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ChallengeID != record.ChallengeID {
		t.Fatalf("ChallengeID = %q, want %q", got.ChallengeID, record.ChallengeID)
	}
	if got.Method != MethodEmail {
		t.Fatalf("Method = %q, want %q", got.Method, MethodEmail)
	}
	if got.Status != challengePending {
		t.Fatalf("Status = %d, want pending", got.Status)
	}
	if got.CodeHash != record.CodeHash {
		t.Fatal("CodeHash mismatch after roundtrip")
	}
}

func TestChallengeStoreGetMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")

	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("Get = %v, want ErrChallengeNotFound", err)
	}
}

func TestChallengeStoreCreateSupersedes(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	first := newTestChallenge("u1", "111111", 5*time.Minute)
	second := newTestChallenge("u1", "222222", 5*time.Minute)

	if err := store.Create(ctx, first, 5*time.Minute); err != nil {
		t.Fatalf("Create first failed: %v", err)
	}
	if err := store.Create(ctx, second, 5*time.Minute); err != nil {
		t.Fatalf("Create second failed: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ChallengeID != second.ChallengeID {
		t.Fatal("expected second challenge to supersede the first")
	}

	// The superseded code must not verify.
	outcome, err := store.Verify(ctx, "u1", codeMatcher("111111"), 3)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome.Valid {
		t.Fatal("superseded code verified")
	}
}

func TestChallengeStoreExpiredOnRead(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", -time.Second)
	if err := store.Create(ctx, record, time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("Get = %v, want ErrChallengeExpired", err)
	}
	// Expired records are deleted, not archived.
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("second Get = %v, want ErrChallengeNotFound", err)
	}
}

func TestChallengeStoreVerifyExpiredWinsOverAttempts(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", -time.Second)
	if err := store.Create(ctx, record, time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Verify(ctx, "u1", codeMatcher("123456"), 3); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("Verify = %v, want ErrChallengeExpired even with a correct code", err)
	}
}

func TestChallengeStoreVerifyMatchIsTerminal(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", 5*time.Minute)
	if err := store.Create(ctx, record, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	outcome, err := store.Verify(ctx, "u1", codeMatcher("123456"), 3)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !outcome.Valid {
		t.Fatal("correct code rejected")
	}

	// A verified challenge can never verify again.
	if _, err := store.Verify(ctx, "u1", codeMatcher("123456"), 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("second Verify = %v, want ErrChallengeNotFound", err)
	}
}

func TestChallengeStoreAttemptAccounting(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", 5*time.Minute)
	if err := store.Create(ctx, record, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		outcome, err := store.Verify(ctx, "u1", codeMatcher("000000"), 3)
		if err != nil {
			t.Fatalf("Verify attempt %d failed: %v", i+1, err)
		}
		if outcome.Valid {
			t.Fatalf("attempt %d: wrong code verified", i+1)
		}
		if outcome.RemainingAttempts != want {
			t.Fatalf("attempt %d: RemainingAttempts = %d, want %d", i+1, outcome.RemainingAttempts, want)
		}
	}

	// The budget is spent: even the correct code is rejected now.
	if _, err := store.Verify(ctx, "u1", codeMatcher("123456"), 3); !errors.Is(err, ErrChallengeExhausted) {
		t.Fatalf("Verify = %v, want ErrChallengeExhausted", err)
	}
}

func TestChallengeStoreMarkSent(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", 5*time.Minute)
	if err := store.Create(ctx, record, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.MarkSent(ctx, "u1", record.ChallengeID); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != challengeSent {
		t.Fatalf("Status = %d, want sent", got.Status)
	}

	// MarkSent against a superseded challenge is a no-op.
	replacement := newTestChallenge("u1", "654321", 5*time.Minute)
	if err := store.Create(ctx, replacement, 5*time.Minute); err != nil {
		t.Fatalf("Create replacement failed: %v", err)
	}
	if err := store.MarkSent(ctx, "u1", record.ChallengeID); err != nil {
		t.Fatalf("MarkSent on superseded challenge failed: %v", err)
	}
	got, err = store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != challengePending {
		t.Fatal("MarkSent with a stale challenge ID mutated the replacement")
	}
}

func TestChallengeStoreDeleteIdempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "fa")
	ctx := context.Background()

	record := newTestChallenge("u1", "123456", 5*time.Minute)
	if err := store.Create(ctx, record, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("Get after delete = %v, want ErrChallengeNotFound", err)
	}
}

func TestChallengeRecordCodecRoundtrip(t *testing.T) {
	record := newTestChallenge("user-with-a-long-id", "987654", 5*time.Minute)
	record.Method = MethodAuthenticator
	record.CodeHash = [32]byte{}
	record.Attempts = 2
	record.Status = challengeSent

	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeChallengeRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *decoded != *record {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", decoded, record)
	}
}
