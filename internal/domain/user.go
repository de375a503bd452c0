// Package domain contains core business types and interfaces.
//
// This file defines the User (account) type together with the plan state
// machine. Repository models are converted into these types by the service
// layer so business rules never see sql.Null* values.
package domain

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Plan is the subscription tier a user purchased.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanProPlus Plan = "pro_plus"
)

// PaidPlans lists the tiers that can be bought and that time-expire.
var PaidPlans = []Plan{PlanPro, PlanProPlus}

// ParsePlan validates a plan code submitted by a client.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanProPlus:
		return Plan(s), true
	}
	return "", false
}

// IsPaid reports whether the plan is a purchasable tier.
func (p Plan) IsPaid() bool {
	return p == PlanPro || p == PlanProPlus
}

// Rank orders tiers so feature visibility can be compared.
func (p Plan) Rank() int {
	switch p {
	case PlanPro:
		return 1
	case PlanProPlus:
		return 2
	default:
		return 0
	}
}

// DisplayName renders the plan for invoices and notices ("Pro Plus").
// A Caser is stateful, so one is built per call.
func (p Plan) DisplayName() string {
	if p == "" {
		p = PlanFree
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}

// PlanStatus is the billing lifecycle state of the current plan.
type PlanStatus string

const (
	PlanStatusTrial     PlanStatus = "trial"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusExpired   PlanStatus = "expired"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// DefaultPlanDuration is how long a purchased plan stays active.
const DefaultPlanDuration = 30 * 24 * time.Hour

// ExpiryNotice is flashed once per browser session after a sweep downgrades
// the user.
const ExpiryNotice = "Your subscription has expired. You are now on Free plan."

// User represents a registered account.
//
// Usage counters are not stored here: every quota decision recounts the
// linked records for the current window.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	Name         string
	IsStaff      bool

	Plan           Plan
	PlanStatus     PlanStatus
	PlanStart      *time.Time
	PlanEnd        *time.Time
	UsageResetDate time.Time

	YearsExperience int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectivePlan is the tier the entitlement gate evaluates. Anything other
// than an active status is treated as Free, whatever the stored plan says.
func (u *User) EffectivePlan() Plan {
	if u.PlanStatus != PlanStatusActive {
		return PlanFree
	}
	if u.Plan == "" {
		return PlanFree
	}
	return u.Plan
}

// PlanExpired reports whether the sweep should downgrade this account at now.
// Staff accounts are never swept.
func (u *User) PlanExpired(now time.Time) bool {
	if u.IsStaff || !u.Plan.IsPaid() {
		return false
	}
	if u.PlanStatus == PlanStatusExpired {
		return false
	}
	return u.PlanEnd != nil && now.After(*u.PlanEnd)
}

// Expire applies the sweep transition in memory.
func (u *User) Expire() {
	u.Plan = PlanFree
	u.PlanStatus = PlanStatusExpired
	u.PlanStart = nil
	u.PlanEnd = nil
}

// Activate applies a plan purchase in memory.
func (u *User) Activate(plan Plan, now time.Time, duration time.Duration) {
	start := now
	end := now.Add(duration)
	u.Plan = plan
	u.PlanStatus = PlanStatusActive
	u.PlanStart = &start
	u.PlanEnd = &end
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email           string
	Password        string // Raw password, will be hashed by service
	Name            string
	YearsExperience int
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// NullUUIDValue extracts a uuid pointer from uuid.NullUUID.
func NullUUIDValue(n uuid.NullUUID) *uuid.UUID {
	if n.Valid {
		id := n.UUID
		return &id
	}
	return nil
}
