package flareauth

import (
	"context"
	"errors"
	"testing"

	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/token"
)

func TestSignUpSuccess(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newFakeUserStore()
	engine := newTestEngine(t, rdb, store, testConfig())
	ctx := context.Background()

	result, err := engine.SignUp(ctx, "alice@example.com", "+15550100", testPassword)
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if result.UserID == "" {
		t.Fatal("empty user ID")
	}
	if !result.VerificationEnqueued {
		t.Fatal("verification email not enqueued")
	}

	user := store.user(t, result.UserID)
	if user.Email != "alice@example.com" || user.Phone != "+15550100" {
		t.Fatalf("stored user = %+v", user)
	}
	if user.EmailVerified {
		t.Fatal("new user marked verified")
	}
	if user.PasswordHash == "" || user.PasswordHash == testPassword {
		t.Fatal("password stored without hashing")
	}

	// The queued task carries a usable verification token.
	task := consumeTask(t, engine, notify.ChannelEmail, notify.TemplateEmailVerification)
	if task.Recipient != "alice@example.com" {
		t.Fatalf("task recipient = %q", task.Recipient)
	}
	if _, err := engine.tokens.Validate(task.Vars["Token"], token.PurposeEmailVerify); err != nil {
		t.Fatalf("queued token invalid: %v", err)
	}
}

func TestSignUpDuplicate(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newFakeUserStore()
	engine := newTestEngine(t, rdb, store, testConfig())
	ctx := context.Background()

	if _, err := engine.SignUp(ctx, "alice@example.com", "", testPassword); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := engine.SignUp(ctx, "alice@example.com", "", testPassword); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("second SignUp = %v, want ErrAccountExists", err)
	}
	if store.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", store.createCalls)
	}
}

func TestSignUpValidation(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, newFakeUserStore(), testConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", testPassword},
		{"malformed email", "not-an-email", testPassword},
		{"short password", "bob@example.com", "Ab1!"},
		{"no uppercase", "bob@example.com", "lowercase-only-42"},
		{"no digit", "bob@example.com", "NoDigitsHere!"},
		{"no special", "bob@example.com", "NoSpecial42Chars"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.SignUp(ctx, tc.email, "", tc.password); !errors.Is(err, ErrValidation) {
				t.Fatalf("SignUp = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSignUpStoreFailure(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newFakeUserStore()
	store.createErr = errors.New("backend down")
	engine := newTestEngine(t, rdb, store, testConfig())

	if _, err := engine.SignUp(context.Background(), "alice@example.com", "", testPassword); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("SignUp = %v, want ErrStoreUnavailable", err)
	}
}
