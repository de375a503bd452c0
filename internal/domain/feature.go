package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job is a listing. Visibility is the minimum plan that can see and apply.
type Job struct {
	ID         uuid.UUID
	Title      string
	Company    string
	Visibility Plan
	CreatedAt  time.Time
}

// VisibleTo reports whether a user on the given effective plan can see the job.
func (j *Job) VisibleTo(plan Plan) bool {
	return plan.Rank() >= j.Visibility.Rank()
}

// JobApplication is a usage unit for ResourceJobApplication.
type JobApplication struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	JobID     uuid.UUID
	Status    string
	CreatedAt time.Time
}

// ApplyResult reports whether an apply call created a new application.
type ApplyResult struct {
	Application *JobApplication
	Created     bool
	Decision    Decision
}

// Training is a purchasable course.
type Training struct {
	ID       uuid.UUID
	Title    string
	Fee      int64 // minor units
	IsActive bool
}

// Enrollment links a user to a training; unique per (user, training).
type Enrollment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TrainingID uuid.UUID
	PaymentID  *uuid.UUID
	CreatedAt  time.Time
}

// EnrollmentResult is returned by the enrollment flow. When RequiresPayment
// is set the caller must start the order phase for the training.
type EnrollmentResult struct {
	Enrollment      *Enrollment
	Created         bool
	Free            bool
	RequiresPayment bool
	Training        *Training
}

// ConsultationSession is a usage unit for ResourceConsultation.
type ConsultationSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Topic     string
	Priority  bool
	Status    string
	CreatedAt time.Time
}

// ResumeReviewLevel selects the review depth.
type ResumeReviewLevel string

const (
	ResumeReviewBasic    ResumeReviewLevel = "basic"
	ResumeReviewAdvanced ResumeReviewLevel = "advanced"
)

// ResourceKind maps a review level to the quota it consumes.
func (l ResumeReviewLevel) ResourceKind() (ResourceKind, bool) {
	switch l {
	case ResumeReviewBasic:
		return ResourceResumeReviewBasic, true
	case ResumeReviewAdvanced:
		return ResourceResumeReviewAdvanced, true
	}
	return "", false
}

// ResumeReview is a usage unit for the resume review kinds.
type ResumeReview struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Level      ResumeReviewLevel
	Experience string
	Feedback   string
	CreatedAt  time.Time
}

// ExperienceLevel buckets years of experience for review prompts.
func ExperienceLevel(years int) string {
	switch {
	case years <= 1:
		return "fresher"
	case years <= 3:
		return "junior"
	case years <= 6:
		return "mid-level"
	default:
		return "senior"
	}
}

// AIRequest is a usage unit for ResourceAIRequest.
type AIRequest struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Page       string
	TokensUsed int
	CreatedAt  time.Time
}

// AssistantReply is returned by the AI assistant.
type AssistantReply struct {
	Reply    string
	Decision Decision
}

// NotificationKind categorises in-app notifications.
type NotificationKind string

const (
	NotifyPlanActivated   NotificationKind = "plan_activated"
	NotifyPlanExpired     NotificationKind = "plan_expired"
	NotifyEnrollment      NotificationKind = "enrollment"
	NotifyConsultation    NotificationKind = "consultation"
	NotifyAdminAlert      NotificationKind = "admin_alert"
	NotifyPaymentRejected NotificationKind = "payment_rejected"
)

// Notification is an in-app message. A nil UserID addresses staff.
type Notification struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	Kind      NotificationKind
	Message   string
	Data      map[string]any
	Read      bool
	CreatedAt time.Time
}
