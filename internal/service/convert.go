package service

import (
	"encoding/json"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
)

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		Name:            u.Name,
		IsStaff:         u.IsStaff,
		Plan:            domain.Plan(u.Plan),
		PlanStatus:      domain.PlanStatus(u.PlanStatus),
		PlanStart:       domain.NullTimeValue(u.PlanStart),
		PlanEnd:         domain.NullTimeValue(u.PlanEnd),
		UsageResetDate:  u.UsageResetDate,
		YearsExperience: int(u.YearsExperience),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func repoSessionToDomain(s repository.Session) *domain.Session {
	return &domain.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		TokenHash: s.TokenHash,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

func repoPaymentToDomain(p repository.PaymentRecord) *domain.PaymentRecord {
	return &domain.PaymentRecord{
		ID:               p.ID,
		UserID:           p.UserID,
		GatewayPaymentID: p.GatewayPaymentID,
		GatewayOrderID:   p.GatewayOrderID,
		Provider:         p.Provider,
		Kind:             domain.PurchaseKind(p.Kind),
		Plan:             domain.Plan(domain.NullStringValue(p.Plan)),
		TrainingID:       domain.NullUUIDValue(p.TrainingID),
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           domain.PaymentStatus(p.Status),
		CreatedAt:        p.CreatedAt,
	}
}

func repoTrainingToDomain(t repository.Training) *domain.Training {
	return &domain.Training{
		ID:       t.ID,
		Title:    t.Title,
		Fee:      t.Fee,
		IsActive: t.IsActive,
	}
}

func repoEnrollmentToDomain(e repository.Enrollment) *domain.Enrollment {
	return &domain.Enrollment{
		ID:         e.ID,
		UserID:     e.UserID,
		TrainingID: e.TrainingID,
		PaymentID:  domain.NullUUIDValue(e.PaymentID),
		CreatedAt:  e.CreatedAt,
	}
}

func repoJobToDomain(j repository.Job) *domain.Job {
	return &domain.Job{
		ID:         j.ID,
		Title:      j.Title,
		Company:    j.Company,
		Visibility: domain.Plan(j.Visibility),
		CreatedAt:  j.CreatedAt,
	}
}

func repoApplicationToDomain(a repository.JobApplication) *domain.JobApplication {
	return &domain.JobApplication{
		ID:        a.ID,
		UserID:    a.UserID,
		JobID:     a.JobID,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}

func repoConsultationToDomain(c repository.ConsultationSession) *domain.ConsultationSession {
	return &domain.ConsultationSession{
		ID:        c.ID,
		UserID:    c.UserID,
		Topic:     c.Topic,
		Priority:  c.Priority,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

func repoReviewToDomain(r repository.ResumeReview) *domain.ResumeReview {
	return &domain.ResumeReview{
		ID:         r.ID,
		UserID:     r.UserID,
		Level:      domain.ResumeReviewLevel(r.Level),
		Experience: r.Experience,
		Feedback:   r.Feedback,
		CreatedAt:  r.CreatedAt,
	}
}

// repoNotificationToDomain drops undecodable data rather than failing the list.
func repoNotificationToDomain(n repository.Notification) *domain.Notification {
	out := &domain.Notification{
		ID:        n.ID,
		UserID:    domain.NullUUIDValue(n.UserID),
		Kind:      domain.NotificationKind(n.Kind),
		Message:   n.Message,
		Read:      n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.Data.Valid {
		var data map[string]any
		if err := json.Unmarshal(n.Data.RawMessage, &data); err == nil {
			out.Data = data
		}
	}
	return out
}
