package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Session is the durable claim behind a session cookie. It carries only the
// identity's opaque id, never tokens or a password hash, because the claim
// round-trips through the session store.
type Session struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	IdentityID string    `bson:"identityId" json:"identityId"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// NewID returns a 256-bit random session identifier.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
