// Package timeout implements the per-domain adaptive timeout manager:
// the fetch timeout for a registrable domain grows on failure and
// shrinks after a streak of comfortably-fast successes, always bounded
// to [Min, Max].
package timeout

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	Min              = 5 * time.Second
	Max              = 60 * time.Second
	Default          = 30 * time.Second
	BackoffMultiplier = 1.5
	SuccessReduction  = 0.9
	SuccessStreakGoal = 10
)

// Profile is the persisted, per-domain adaptive timeout state.
type Profile struct {
	domain         string
	current        time.Duration
	successStreak  int
	failures       int
	updatedAt      time.Time
}

func (p Profile) Domain() string           { return p.domain }
func (p Profile) Current() time.Duration   { return p.current }
func (p Profile) SuccessStreak() int       { return p.successStreak }
func (p Profile) Failures() int            { return p.failures }
func (p Profile) UpdatedAt() time.Time     { return p.updatedAt }

// profileDTO is the persisted per-domain shape:
// `{ domains: { <domain>: { timeout_secs, success_streak, failures, updated_at }}}`.
type profileDTO struct {
	TimeoutSecs   float64   `json:"timeout_secs"`
	SuccessStreak int       `json:"success_streak"`
	Failures      int       `json:"failures"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type documentDTO struct {
	Domains map[string]profileDTO `json:"domains"`
}

// Manager is a concurrent map of Profile keyed by registrable domain.
// There is no global singleton: callers construct their own Manager and
// inject it.
type Manager struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func New() *Manager {
	return &Manager{profiles: make(map[string]*Profile)}
}

// For returns the current timeout for domain, creating a Default-seeded
// profile on first use. The returned value is always within [Min, Max].
func (m *Manager) For(domain string) time.Duration {
	m.mu.RLock()
	p, ok := m.profiles[domain]
	m.mu.RUnlock()
	if ok {
		return p.current
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[domain]; ok {
		return p.current
	}
	m.profiles[domain] = &Profile{domain: domain, current: Default, updatedAt: time.Now()}
	return Default
}

// RecordFailure grows the domain's timeout towards Max. The spider calls
// it on a 5xx or a transport failure, which includes a fetch cut by its
// deadline.
func (m *Manager) RecordFailure(domain string, now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrSeedLocked(domain, now)
	p.successStreak = 0
	p.failures++
	grown := time.Duration(float64(p.current) * BackoffMultiplier)
	if grown > Max {
		grown = Max
	}
	p.current = grown
	p.updatedAt = now
	return p.current
}

// RecordSuccess counts a comfortably fast success (elapsed under 50% of
// the current timeout) towards the streak; a slower one resets it. Once
// the streak reaches SuccessStreakGoal the timeout is multiplied by
// SuccessReduction, floored at Min, and the streak restarts.
func (m *Manager) RecordSuccess(domain string, elapsed time.Duration, now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrSeedLocked(domain, now)
	p.updatedAt = now
	if elapsed >= p.current/2 {
		p.successStreak = 0
		return p.current
	}
	p.successStreak++
	if p.successStreak >= SuccessStreakGoal {
		reduced := time.Duration(float64(p.current) * SuccessReduction)
		if reduced < Min {
			reduced = Min
		}
		p.current = reduced
		p.successStreak = 0
	}
	return p.current
}

func (m *Manager) getOrSeedLocked(domain string, now time.Time) *Profile {
	p, ok := m.profiles[domain]
	if !ok {
		p = &Profile{domain: domain, current: Default, updatedAt: now}
		m.profiles[domain] = p
	}
	return p
}

// Snapshot returns a copy of every tracked profile, for persistence.
func (m *Manager) Snapshot() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out
}

// MarshalJSON encodes the manager's state in the persisted document shape.
func (m *Manager) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := documentDTO{Domains: make(map[string]profileDTO, len(m.profiles))}
	for domain, p := range m.profiles {
		doc.Domains[domain] = profileDTO{
			TimeoutSecs:   p.current.Seconds(),
			SuccessStreak: p.successStreak,
			Failures:      p.failures,
			UpdatedAt:     p.updatedAt,
		}
	}
	return json.Marshal(doc)
}

// LoadJSON replaces the manager's state from a previously persisted
// document. Invalid profiles (timeout outside [Min, Max]) are discarded
// rather than rejecting the whole load.
func (m *Manager) LoadJSON(data []byte) error {
	var doc documentDTO
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	profiles := make(map[string]*Profile, len(doc.Domains))
	for domain, dto := range doc.Domains {
		secs := time.Duration(dto.TimeoutSecs * float64(time.Second))
		if secs < Min || secs > Max {
			continue
		}
		profiles[domain] = &Profile{
			domain:        domain,
			current:       secs,
			successStreak: dto.SuccessStreak,
			failures:      dto.Failures,
			updatedAt:     dto.UpdatedAt,
		}
	}
	m.mu.Lock()
	m.profiles = profiles
	m.mu.Unlock()
	return nil
}
