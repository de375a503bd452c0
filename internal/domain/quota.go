// Package domain contains core business types and interfaces.
//
// This file defines the quota policy table consulted by the entitlement gate.
package domain

import (
	"time"
)

// ResourceKind identifies a metered feature.
type ResourceKind string

const (
	ResourceJobApplication       ResourceKind = "job_application"
	ResourceAIRequest            ResourceKind = "ai_request"
	ResourceConsultation         ResourceKind = "consultation"
	ResourceResumeReviewBasic    ResourceKind = "resume_review_basic"
	ResourceResumeReviewAdvanced ResourceKind = "resume_review_advanced"
	ResourceFreeTraining         ResourceKind = "free_training"
)

// ResourceKinds lists every kind in display order.
var ResourceKinds = []ResourceKind{
	ResourceJobApplication,
	ResourceAIRequest,
	ResourceConsultation,
	ResourceResumeReviewBasic,
	ResourceResumeReviewAdvanced,
	ResourceFreeTraining,
}

// ParseResourceKind validates a kind name.
func ParseResourceKind(s string) (ResourceKind, bool) {
	for _, k := range ResourceKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Label is the user-facing name of the kind.
func (k ResourceKind) Label() string {
	switch k {
	case ResourceJobApplication:
		return "Job applications"
	case ResourceAIRequest:
		return "AI assistant"
	case ResourceConsultation:
		return "Consultation sessions"
	case ResourceResumeReviewBasic:
		return "Resume review"
	case ResourceResumeReviewAdvanced:
		return "Advanced resume review"
	case ResourceFreeTraining:
		return "Free training"
	}
	return string(k)
}

// Window defines when a quota counter resets.
type Window string

const (
	WindowNone          Window = "none" // never counted: limit is 0 or unlimited
	WindowCalendarMonth Window = "calendar_month"
	WindowRolling30Days Window = "rolling_30_days"
	WindowLifetime      Window = "lifetime"
)

// Start returns the beginning of the window containing now. Calendar months
// are computed in UTC. Lifetime windows start at the zero time.
func (w Window) Start(now time.Time) time.Time {
	now = now.UTC()
	switch w {
	case WindowCalendarMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case WindowRolling30Days:
		return now.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

// Unlimited is the sentinel limit for tiers with no cap.
const Unlimited = -1

// Policy is one cell of the quota table.
type Policy struct {
	Limit  int
	Window Window
}

// IsUnlimited reports whether no counting is needed to allow the action.
func (p Policy) IsUnlimited() bool {
	return p.Limit == Unlimited
}

// QuotaPolicies maps (plan, kind) to a policy. Calendar-month windows are
// used for every monthly quota.
var QuotaPolicies = map[Plan]map[ResourceKind]Policy{
	PlanFree: {
		ResourceJobApplication:       {Limit: 5, Window: WindowCalendarMonth},
		ResourceAIRequest:            {Limit: 0, Window: WindowNone},
		ResourceConsultation:         {Limit: 0, Window: WindowNone},
		ResourceResumeReviewBasic:    {Limit: 0, Window: WindowNone},
		ResourceResumeReviewAdvanced: {Limit: 0, Window: WindowNone},
		ResourceFreeTraining:         {Limit: 0, Window: WindowNone},
	},
	PlanPro: {
		ResourceJobApplication:       {Limit: 10, Window: WindowCalendarMonth},
		ResourceAIRequest:            {Limit: 50, Window: WindowCalendarMonth},
		ResourceConsultation:         {Limit: 1, Window: WindowCalendarMonth},
		ResourceResumeReviewBasic:    {Limit: Unlimited, Window: WindowNone},
		ResourceResumeReviewAdvanced: {Limit: 0, Window: WindowNone},
		ResourceFreeTraining:         {Limit: 0, Window: WindowNone},
	},
	PlanProPlus: {
		ResourceJobApplication:       {Limit: Unlimited, Window: WindowNone},
		ResourceAIRequest:            {Limit: Unlimited, Window: WindowNone},
		ResourceConsultation:         {Limit: 4, Window: WindowCalendarMonth},
		ResourceResumeReviewBasic:    {Limit: Unlimited, Window: WindowNone},
		ResourceResumeReviewAdvanced: {Limit: Unlimited, Window: WindowNone},
		ResourceFreeTraining:         {Limit: 1, Window: WindowLifetime},
	},
}

// PolicyFor returns the policy for a tier, defaulting to the free tier for
// unknown plans and to "not available" for unknown kinds.
func PolicyFor(plan Plan, kind ResourceKind) Policy {
	table, ok := QuotaPolicies[plan]
	if !ok {
		table = QuotaPolicies[PlanFree]
	}
	if p, ok := table[kind]; ok {
		return p
	}
	return Policy{Limit: 0, Window: WindowNone}
}

// Decision is the gate's answer for one metered action. A denial is a normal
// value carrying the same metadata so callers can render "X of Y used".
type Decision struct {
	Kind      ResourceKind
	Plan      Plan // effective plan the decision was made for
	Allowed   bool
	Unlimited bool
	Used      int
	Limit     int
	ResetsAt  *time.Time // nil for lifetime or uncounted windows
}

// Remaining returns how many more actions are allowed, or Unlimited.
func (d Decision) Remaining() int {
	if d.Unlimited {
		return Unlimited
	}
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}

// UsageSummary is the per-kind view returned to clients.
type UsageSummary struct {
	Plan          Plan
	PlanStatus    PlanStatus
	EffectivePlan Plan
	PlanEnd       *time.Time
	Decisions     []Decision
}
