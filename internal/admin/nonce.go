package admin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultNonceLifetime bounds how long a rendered settings form stays valid.
const DefaultNonceLifetime = 24 * time.Hour

// Nonces issues and verifies per-action form tokens. A token is valid during
// the half-lifetime tick it was issued in and the following one.
type Nonces struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewNonces returns a Nonces keyed by secret.
func NewNonces(secret []byte, lifetime time.Duration) *Nonces {
	if lifetime <= 0 {
		lifetime = DefaultNonceLifetime
	}
	return &Nonces{secret: secret, lifetime: lifetime, now: time.Now}
}

// Create returns a token binding action to user for the current tick.
func (n *Nonces) Create(action, user string) string {
	return n.sign(action, user, n.tick())
}

// Verify reports whether token was issued for action and user within the
// last two ticks.
func (n *Nonces) Verify(token, action, user string) bool {
	if token == "" {
		return false
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(n.sign(action, user, t))) {
			return true
		}
	}
	return false
}

func (n *Nonces) tick() int64 {
	half := int64(n.lifetime / 2 / time.Second)
	if half < 1 {
		half = 1
	}
	return n.now().Unix() / half
}

func (n *Nonces) sign(action, user string, tick int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(action))
	mac.Write([]byte{0})
	mac.Write([]byte(user))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:20]
}
