package exchange

import (
	"encoding/base64"
	"testing"

	"coinbase-lob/internal/config"
)

// "c2VjcmV0LXNpZ25pbmcta2V5" is base64("secret-signing-key").
func newTestAuth() *Auth {
	return NewAuth(config.APIConfig{
		Key:        "test-key",
		Secret:     base64.StdEncoding.EncodeToString([]byte("secret-signing-key")),
		Passphrase: "test-pass",
	})
}

func TestSignDeterministic(t *testing.T) {
	t.Parallel()
	a := newTestAuth()

	sig1, err := a.Sign("1500000000", "GET", "/users/self", "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := a.Sign("1500000000", "GET", "/users/self", "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig1 != sig2 {
		t.Error("same inputs must produce the same signature")
	}

	// HMAC-SHA256 digests are 32 bytes, base64-encoded.
	raw, err := base64.StdEncoding.DecodeString(sig1)
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("signature length = %d bytes, want 32", len(raw))
	}
}

func TestSignVariesWithMessage(t *testing.T) {
	t.Parallel()
	a := newTestAuth()

	base, _ := a.Sign("1500000000", "GET", "/users/self", "")

	variants := []struct {
		name                          string
		timestamp, method, path, body string
	}{
		{"timestamp", "1500000001", "GET", "/users/self", ""},
		{"method", "1500000000", "POST", "/users/self", ""},
		{"path", "1500000000", "GET", "/products", ""},
		{"body", "1500000000", "GET", "/users/self", `{"x":1}`},
	}
	for _, tt := range variants {
		sig, err := a.Sign(tt.timestamp, tt.method, tt.path, tt.body)
		if err != nil {
			t.Fatalf("Sign(%s): %v", tt.name, err)
		}
		if sig == base {
			t.Errorf("changing %s did not change the signature", tt.name)
		}
	}
}

func TestSignBadSecret(t *testing.T) {
	t.Parallel()
	a := NewAuth(config.APIConfig{Key: "k", Secret: "!!! not base64 !!!", Passphrase: "p"})

	if _, err := a.Sign("1500000000", "GET", "/users/self", ""); err == nil {
		t.Error("Sign with undecodable secret should error")
	}
}

func TestRESTHeaders(t *testing.T) {
	t.Parallel()
	a := newTestAuth()

	headers, err := a.RESTHeaders("GET", "/products/ETH-USD/book?level=3", "")
	if err != nil {
		t.Fatalf("RESTHeaders: %v", err)
	}

	for _, key := range []string{"CB-ACCESS-SIGN", "CB-ACCESS-TIMESTAMP", "CB-ACCESS-KEY", "CB-ACCESS-PASSPHRASE"} {
		if headers[key] == "" {
			t.Errorf("header %s is empty", key)
		}
	}
	if headers["CB-ACCESS-KEY"] != "test-key" {
		t.Errorf("CB-ACCESS-KEY = %q, want test-key", headers["CB-ACCESS-KEY"])
	}
	if headers["CB-ACCESS-PASSPHRASE"] != "test-pass" {
		t.Errorf("CB-ACCESS-PASSPHRASE = %q, want test-pass", headers["CB-ACCESS-PASSPHRASE"])
	}

	// The signature must verify against the same message.
	want, err := a.Sign(headers["CB-ACCESS-TIMESTAMP"], "GET", "/products/ETH-USD/book?level=3", "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if headers["CB-ACCESS-SIGN"] != want {
		t.Error("CB-ACCESS-SIGN does not match a recomputed signature")
	}
}

func TestSubscribeMsg(t *testing.T) {
	t.Parallel()
	a := newTestAuth()

	msg, err := a.SubscribeMsg([]string{"ETH-USD", "BTC-USD"})
	if err != nil {
		t.Fatalf("SubscribeMsg: %v", err)
	}

	if msg.Type != "subscribe" {
		t.Errorf("type = %q, want subscribe", msg.Type)
	}
	if len(msg.ProductIDs) != 2 {
		t.Errorf("product_ids = %v", msg.ProductIDs)
	}
	if msg.Key != "test-key" || msg.Passphrase != "test-pass" {
		t.Errorf("credentials not carried: key=%q passphrase=%q", msg.Key, msg.Passphrase)
	}

	// Signature covers timestamp + "GET" + "/users/self".
	want, err := a.Sign(msg.Timestamp, "GET", "/users/self", "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if msg.Signature != want {
		t.Error("subscription signature does not match a recomputed signature")
	}
}
