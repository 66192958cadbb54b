package flareauth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTOTPManagerGenerateSecret(t *testing.T) {
	manager := newTOTPManager(defaultConfig().TOTP)

	secret, uri, err := manager.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.Contains(uri, "alice@example.com") {
		t.Fatalf("provisioning URI %q does not name the account", uri)
	}
	if !strings.Contains(uri, "issuer=flareauth") {
		t.Fatalf("provisioning URI %q does not name the issuer", uri)
	}
}

func TestTOTPManagerVerifyCode(t *testing.T) {
	manager := newTOTPManager(defaultConfig().TOTP)

	secret, _, err := manager.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	now := time.Now()
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	if !manager.VerifyCode(secret, code, now) {
		t.Fatal("current-window code rejected")
	}
	// One period of skew in either direction is tolerated.
	if !manager.VerifyCode(secret, code, now.Add(30*time.Second)) {
		t.Fatal("previous-window code rejected within skew")
	}
	if manager.VerifyCode(secret, code, now.Add(5*time.Minute)) {
		t.Fatal("stale code accepted")
	}
	if manager.VerifyCode(secret, "000000", now) && manager.VerifyCode(secret, "999999", now) {
		t.Fatal("arbitrary codes accepted")
	}
}
