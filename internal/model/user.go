// Package model holds the plain data types shared across the input
// pipeline: users, macros, virtual-controller state and the parsed
// InputSequence. Nothing in this package talks to disk or to a device —
// see internal/store and internal/vgamepad for that.
package model

import "strings"

// AccessLevel is an ordered permission tier. Higher values outrank lower
// ones; blacklist checks and command gating compare levels directly.
type AccessLevel int

const (
	LevelUser AccessLevel = iota
	LevelWhitelisted
	LevelVIP
	LevelModerator
	LevelAdmin
	LevelSuperadmin
)

func (l AccessLevel) String() string {
	switch l {
	case LevelUser:
		return "user"
	case LevelWhitelisted:
		return "whitelisted"
	case LevelVIP:
		return "vip"
	case LevelModerator:
		return "moderator"
	case LevelAdmin:
		return "admin"
	case LevelSuperadmin:
		return "superadmin"
	default:
		return "unknown"
	}
}

// User is the core's view of a chat participant. Name is the primary key
// and is always lowercase; counters only ever increase.
type User struct {
	Name            string
	Level           AccessLevel
	OptedOut        bool
	AutoWhitelisted bool
	MessageCount    int64
	ValidInputCount int64
	Port            int
	Silenced        bool
}

// NewUser creates a user record for a name observed for the first time.
// The caller is responsible for lowercasing upstream of persistence, but
// NewUser normalizes defensively since it is the one place a User is born.
func NewUser(name string, defaultPort int) *User {
	return &User{
		Name: strings.ToLower(strings.TrimSpace(name)),
		Port: defaultPort,
	}
}

// RecordMessage increments the message counter unless the user opted out
// of being tracked.
func (u *User) RecordMessage() {
	if u.OptedOut {
		return
	}
	u.MessageCount++
}

// RecordValidInput increments the valid-input counter. Called once per
// InputSequence that reaches ValidationResult Valid.
func (u *User) RecordValidInput() {
	u.ValidInputCount++
}

// EligibleForAutoWhitelist reports whether the auto-whitelist rule (spec
// §4.8) should fire for this user given the configured threshold.
func (u *User) EligibleForAutoWhitelist(threshold int64) bool {
	return u.Level < LevelWhitelisted && !u.AutoWhitelisted && u.ValidInputCount >= threshold
}

// PromoteAutoWhitelist raises the user to Whitelisted and marks the rule
// as having already fired, so it can never apply twice.
func (u *User) PromoteAutoWhitelist() {
	u.Level = LevelWhitelisted
	u.AutoWhitelisted = true
}
