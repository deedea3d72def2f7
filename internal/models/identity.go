package models

import "time"

// Identity is the durable user record shared by both authentication paths.
// Email is the canonical lookup key; ProviderID is set once a Google login
// has completed at least once. Password hash and provider tokens never leave
// the service, hence the json:"-" tags.
type Identity struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	ProviderID   string    `bson:"providerId,omitempty" json:"providerId,omitempty"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	AccessToken  string    `bson:"accessToken,omitempty" json:"-"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"-"`
	TokenExpiry  time.Time `bson:"tokenExpiry,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Linked reports whether this identity has completed a Google login.
func (i *Identity) Linked() bool { return i.ProviderID != "" }

// HasPassword reports whether this identity registered locally.
func (i *Identity) HasPassword() bool { return i.PasswordHash != "" }
