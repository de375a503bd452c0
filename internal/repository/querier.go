package repository

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	ActivateUserPlan(ctx context.Context, arg ActivateUserPlanParams) (User, error)
	CountAiRequestsSince(ctx context.Context, arg CountAiRequestsSinceParams) (int64, error)
	CountConsultationSessionsSince(ctx context.Context, arg CountConsultationSessionsSinceParams) (int64, error)
	CountEnrollmentsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountJobApplicationsSince(ctx context.Context, arg CountJobApplicationsSinceParams) (int64, error)
	CountResumeReviewsSince(ctx context.Context, arg CountResumeReviewsSinceParams) (int64, error)
	CreateAiRequest(ctx context.Context, arg CreateAiRequestParams) (AiRequest, error)
	CreateConsultationSession(ctx context.Context, arg CreateConsultationSessionParams) (ConsultationSession, error)
	CreateEnrollmentIfAbsent(ctx context.Context, arg CreateEnrollmentIfAbsentParams) (Enrollment, error)
	CreateJobApplicationIfAbsent(ctx context.Context, arg CreateJobApplicationIfAbsentParams) (JobApplication, error)
	CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error)
	CreateResumeReview(ctx context.Context, arg CreateResumeReviewParams) (ResumeReview, error)
	CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	DeleteExpiredSessions(ctx context.Context) error
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteSessionValues(ctx context.Context, arg DeleteSessionValuesParams) error
	ExpireUserPlan(ctx context.Context, arg ExpireUserPlanParams) (int64, error)
	GetEnrollment(ctx context.Context, arg GetEnrollmentParams) (Enrollment, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	GetJobApplication(ctx context.Context, arg GetJobApplicationParams) (JobApplication, error)
	GetPaymentRecordByGatewayID(ctx context.Context, gatewayPaymentID string) (PaymentRecord, error)
	GetPaymentRecordForUser(ctx context.Context, arg GetPaymentRecordForUserParams) (PaymentRecord, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	GetSessionValue(ctx context.Context, arg GetSessionValueParams) (string, error)
	GetTraining(ctx context.Context, id uuid.UUID) (Training, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	InsertPaymentRecordIfAbsent(ctx context.Context, arg InsertPaymentRecordIfAbsentParams) (PaymentRecord, error)
	ListJobsByVisibility(ctx context.Context, visibilities []string) ([]Job, error)
	ListPaymentRecordsByUser(ctx context.Context, userID uuid.UUID) ([]PaymentRecord, error)
	ListUnreadNotifications(ctx context.Context, arg ListUnreadNotificationsParams) ([]Notification, error)
	ListUsersWithLapsedPlans(ctx context.Context, arg ListUsersWithLapsedPlansParams) ([]User, error)
	MarkNotificationsRead(ctx context.Context, arg MarkNotificationsReadParams) error
	SetSessionValue(ctx context.Context, arg SetSessionValueParams) error
}

var _ Querier = (*Queries)(nil)
