// Package domain contains the core business entities for Harper Profiles.
// These are pure Go structs with no external dependencies, representing
// the user records the profile service manages and ranks.
package domain

import (
	"time"
)

// Defaults applied when a user record is created lazily.
const (
	// DefaultName is assigned when no display name is known yet.
	DefaultName = "New User"

	// DefaultTheme is the default UI theme preference.
	DefaultTheme = "light"
)

// Preferences holds per-user display and notification settings.
// Stored nested under the user document.
type Preferences struct {
	// Theme is the UI theme ("light" or "dark").
	Theme string `json:"theme"`

	// Notifications indicates whether the user receives notifications.
	Notifications bool `json:"notifications"`
}

// DefaultPreferences returns the preferences applied at creation.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:         DefaultTheme,
		Notifications: true,
	}
}

// User represents a profile record. The document key equals the verified
// authentication subject identifier and is immutable after creation.
//
// The three metric fields (TotalAverageWeightRatings, NumberOfRents,
// RecentlyActive) are pointers because they are absent until the first
// rating or activity event. PotentialScore is derived from them and is
// persisted alongside every metric-changing write.
type User struct {
	// ID is the opaque stable identifier (the auth subject id).
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the contact address. Write-once by UI convention.
	Email string `json:"email"`

	// TotalAverageWeightRatings is the running weighted rating average
	// in [0,5], rounded to one decimal place. Nil until the first rating.
	TotalAverageWeightRatings *float64 `json:"totalAverageWeightRatings,omitempty"`

	// NumberOfRents counts rating events. Monotonically increasing.
	NumberOfRents *int64 `json:"numberOfRents,omitempty"`

	// RecentlyActive is the epoch-millisecond timestamp of the last
	// activity touch. Nil until the first touch.
	RecentlyActive *int64 `json:"recentlyActive,omitempty"`

	// CreatedAt is the epoch-millisecond creation timestamp.
	// Set once and never overwritten by later updates.
	CreatedAt int64 `json:"createdAt"`

	// UpdatedAt is the epoch-millisecond timestamp of the last mutation.
	// Invariant: UpdatedAt >= CreatedAt.
	UpdatedAt int64 `json:"updatedAt"`

	// PotentialScore is the derived ranking value in [0,1].
	PotentialScore float64 `json:"potentialScore"`

	// Preferences holds display and notification settings.
	Preferences Preferences `json:"preferences"`

	// Version is the optimistic-concurrency token, incremented on every
	// successful write. Never exposed in API responses.
	Version int64 `json:"-"`
}

// NewUser creates a User with default values at the given creation time.
func NewUser(id string, now time.Time) *User {
	ms := EpochMillis(now)
	return &User{
		ID:          id,
		Name:        DefaultName,
		CreatedAt:   ms,
		UpdatedAt:   ms,
		Preferences: DefaultPreferences(),
	}
}

// Rating returns the current average rating, or 0 if no rating exists yet.
func (u *User) Rating() float64 {
	if u.TotalAverageWeightRatings == nil {
		return 0
	}
	return *u.TotalAverageWeightRatings
}

// Rents returns the rating-event count, or 0 if none occurred yet.
func (u *User) Rents() int64 {
	if u.NumberOfRents == nil {
		return 0
	}
	return *u.NumberOfRents
}

// EpochMillis converts a time to epoch milliseconds, the timestamp
// representation used throughout the stored document.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ProfilePatch is the typed partial update accepted by the profile edit
// operation. Only the fields listed here are mutable; id and createdAt can
// never be patched. Nil means "leave unchanged".
type ProfilePatch struct {
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Theme         *string `json:"theme,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Theme == nil && p.Notifications == nil
}

// Apply merges the patch into the user and returns whether anything changed.
func (p ProfilePatch) Apply(u *User) bool {
	changed := false
	if p.Name != nil && *p.Name != u.Name {
		u.Name = *p.Name
		changed = true
	}
	if p.Email != nil && *p.Email != u.Email {
		u.Email = *p.Email
		changed = true
	}
	if p.Theme != nil && *p.Theme != u.Preferences.Theme {
		u.Preferences.Theme = *p.Theme
		changed = true
	}
	if p.Notifications != nil && *p.Notifications != u.Preferences.Notifications {
		u.Preferences.Notifications = *p.Notifications
		changed = true
	}
	return changed
}
