// Package exchange implements the venue's REST and streaming clients.
//
// The REST client (Client) fetches level-3 book snapshots and product
// metadata; the Feed maintains the streaming connection that delivers
// raw order-event frames. Both share the HMAC request signer (Auth).
package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"coinbase-lob/internal/config"
	"coinbase-lob/pkg/types"
)

// Auth signs requests with the venue's API key triplet. The signature is
// base64(HMAC-SHA256(base64-decode(secret), timestamp + method + path + body)).
type Auth struct {
	key        string
	secret     string // base64-encoded signing key
	passphrase string
}

// NewAuth creates a signer from config.
func NewAuth(cfg config.APIConfig) *Auth {
	return &Auth{
		key:        cfg.Key,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
	}
}

// Sign computes the signature for one request at the given timestamp
// (epoch seconds as a string).
func (a *Auth) Sign(timestamp, method, path, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(a.secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// RESTHeaders generates the CB-ACCESS-* headers for a REST request.
func (a *Auth) RESTHeaders(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.Sign(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	return map[string]string{
		"CB-ACCESS-SIGN":       sig,
		"CB-ACCESS-TIMESTAMP":  timestamp,
		"CB-ACCESS-KEY":        a.key,
		"CB-ACCESS-PASSPHRASE": a.passphrase,
	}, nil
}

// SubscribeMsg builds the signed stream subscription frame. The venue
// verifies the same HMAC scheme as REST, over GET /users/self.
func (a *Auth) SubscribeMsg(productIDs []string) (types.SubscribeMsg, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.Sign(timestamp, "GET", "/users/self", "")
	if err != nil {
		return types.SubscribeMsg{}, fmt.Errorf("sign subscription: %w", err)
	}

	return types.SubscribeMsg{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Signature:  sig,
		Timestamp:  timestamp,
		Key:        a.key,
		Passphrase: a.passphrase,
	}, nil
}
