package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
)

// JobService lists jobs and records applications.
type JobService interface {
	// List returns the jobs visible at the user's effective plan.
	List(ctx context.Context, user *domain.User) ([]*domain.Job, error)

	// Apply checks visibility, then the job_application quota, then records
	// the application. Re-applying returns the existing application and does
	// not spend quota. A denied quota is reported through ApplyResult.Decision
	// with a nil Application.
	Apply(ctx context.Context, user *domain.User, jobID uuid.UUID) (*domain.ApplyResult, error)
}

type jobService struct {
	store        repository.Store
	entitlements EntitlementService
	logger       *slog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(store repository.Store, entitlements EntitlementService, logger *slog.Logger) JobService {
	return &jobService{
		store:        store,
		entitlements: entitlements,
		logger:       logger,
	}
}

func (s *jobService) List(ctx context.Context, user *domain.User) ([]*domain.Job, error) {
	const op = "JobService.List"

	plan := user.EffectivePlan()
	var visible []string
	for _, p := range []domain.Plan{domain.PlanFree, domain.PlanPro, domain.PlanProPlus} {
		if p.Rank() <= plan.Rank() {
			visible = append(visible, string(p))
		}
	}

	rows, err := s.store.ListJobsByVisibility(ctx, visible)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list jobs")
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for _, j := range rows {
		jobs = append(jobs, repoJobToDomain(j))
	}
	return jobs, nil
}

func (s *jobService) Apply(ctx context.Context, user *domain.User, jobID uuid.UUID) (*domain.ApplyResult, error) {
	const op = "JobService.Apply"

	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "job", jobID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load job")
	}
	job := repoJobToDomain(j)

	plan := user.EffectivePlan()
	if !job.VisibleTo(plan) {
		return nil, domain.Errorf(domain.EPAYMENT, op, "This job is available on the %s plan and above.", job.Visibility.DisplayName())
	}

	params := repository.GetJobApplicationParams{UserID: user.ID, JobID: jobID}
	if existing, err := s.store.GetJobApplication(ctx, params); err == nil {
		return &domain.ApplyResult{Application: repoApplicationToDomain(existing)}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check application")
	}

	d, err := s.entitlements.Check(ctx, user, domain.ResourceJobApplication)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return &domain.ApplyResult{Decision: d}, nil
	}

	a, err := s.store.CreateJobApplicationIfAbsent(ctx, repository.CreateJobApplicationIfAbsentParams{
		UserID: user.ID,
		JobID:  jobID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race with a concurrent apply for the same job.
		existing, err := s.store.GetJobApplication(ctx, params)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to load application")
		}
		return &domain.ApplyResult{Application: repoApplicationToDomain(existing), Decision: d}, nil
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create application")
	}

	s.logger.Info("job application created", "user_id", user.ID, "job_id", jobID, "used", d.Used+1, "limit", d.Limit)

	return &domain.ApplyResult{
		Application: repoApplicationToDomain(a),
		Created:     true,
		Decision:    d,
	}, nil
}

var _ JobService = (*jobService)(nil)
