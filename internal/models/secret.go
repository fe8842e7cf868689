package models

import "time"

// Secret is a single stored secret. It lives until it is read once or
// until CreatedAt+TTL, whichever comes first.
type Secret struct {
	ID        string        `json:"id"`
	Content   string        `json:"-"` // never serialized by accident
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

func (s *Secret) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.TTL)
}

// Expired reports whether the secret is past its deadline at now.
// The deadline itself counts as expired.
func (s *Secret) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}
