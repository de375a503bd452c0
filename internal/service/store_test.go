package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory repository.Store with the same conflict and
// compare-and-set semantics as the SQL queries. ExecTx runs transactions
// one at a time and restores a snapshot when fn fails.
type fakeStore struct {
	tx    sync.Mutex
	mu    sync.Mutex
	data  fakeData
	calls map[string]int
	now   func() time.Time
}

type fakeData struct {
	users         map[uuid.UUID]repository.User
	sessions      map[string]repository.Session
	sessionValues map[uuid.UUID]map[string]string
	payments      []repository.PaymentRecord
	trainings     map[uuid.UUID]repository.Training
	enrollments   []repository.Enrollment
	jobs          map[uuid.UUID]repository.Job
	applications  []repository.JobApplication
	aiRequests    []repository.AiRequest
	consultations []repository.ConsultationSession
	reviews       []repository.ResumeReview
	notifications []repository.Notification
}

var errUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: fakeData{
			users:         make(map[uuid.UUID]repository.User),
			sessions:      make(map[string]repository.Session),
			sessionValues: make(map[uuid.UUID]map[string]string),
			trainings:     make(map[uuid.UUID]repository.Training),
			jobs:          make(map[uuid.UUID]repository.Job),
		},
		calls: make(map[string]int),
		now:   time.Now,
	}
}

func (d fakeData) clone() fakeData {
	c := d
	c.users = cloneMap(d.users)
	c.sessions = cloneMap(d.sessions)
	c.trainings = cloneMap(d.trainings)
	c.jobs = cloneMap(d.jobs)
	c.sessionValues = make(map[uuid.UUID]map[string]string, len(d.sessionValues))
	for k, v := range d.sessionValues {
		c.sessionValues[k] = cloneMap(v)
	}
	c.payments = slices.Clone(d.payments)
	c.enrollments = slices.Clone(d.enrollments)
	c.applications = slices.Clone(d.applications)
	c.aiRequests = slices.Clone(d.aiRequests)
	c.consultations = slices.Clone(d.consultations)
	c.reviews = slices.Clone(d.reviews)
	c.notifications = slices.Clone(d.notifications)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) record(name string) {
	f.calls[name]++
}

// countCalls returns how often a counting query ran.
func (f *fakeStore) countCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) totalCountCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for name, n := range f.calls {
		if len(name) > 5 && name[:5] == "Count" {
			total += n
		}
	}
	return total
}

func (f *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	f.tx.Lock()
	defer f.tx.Unlock()

	f.mu.Lock()
	snapshot := f.data.clone()
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.data = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// Seeding helpers
// =============================================================================

func (f *fakeStore) addUser(plan domain.Plan, status domain.PlanStatus, planEnd *time.Time) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	u := repository.User{
		ID:             uuid.New(),
		Email:          uuid.NewString()[:8] + "@example.com",
		Name:           "Test User",
		Plan:           string(plan),
		PlanStatus:     string(status),
		PlanEnd:        domain.ToNullTime(planEnd),
		UsageResetDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if planEnd != nil {
		start := planEnd.Add(-domain.DefaultPlanDuration)
		u.PlanStart = domain.ToNullTime(&start)
	}
	f.data.users[u.ID] = u
	return repoUserToDomain(u)
}

func (f *fakeStore) user(id uuid.UUID) repository.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.users[id]
}

func (f *fakeStore) setStaff(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.data.users[id]
	u.IsStaff = true
	f.data.users[id] = u
}

func (f *fakeStore) addTraining(title string, fee int64) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := repository.Training{ID: uuid.New(), Title: title, Fee: fee, IsActive: true, CreatedAt: f.now()}
	f.data.trainings[t.ID] = t
	return t.ID
}

func (f *fakeStore) addJob(title string, visibility domain.Plan) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := repository.Job{ID: uuid.New(), Title: title, Company: "Acme", Visibility: string(visibility), CreatedAt: f.now()}
	f.data.jobs[j.ID] = j
	return j.ID
}

// addApplications inserts n applications for distinct jobs created at at.
func (f *fakeStore) addApplications(userID uuid.UUID, n int, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range n {
		f.data.applications = append(f.data.applications, repository.JobApplication{
			ID: uuid.New(), UserID: userID, JobID: uuid.New(), Status: "applied", CreatedAt: at,
		})
	}
}

func (f *fakeStore) paymentRecords() []repository.PaymentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.data.payments)
}

func (f *fakeStore) enrollmentCount(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.data.enrollments {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeStore) notificationsFor(userID uuid.NullUUID, kind domain.NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.data.notifications {
		if row.UserID == userID && row.Kind == string(kind) {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Users
// =============================================================================

func (f *fakeStore) ActivateUserPlan(ctx context.Context, arg repository.ActivateUserPlanParams) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.data.users[arg.ID]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	u.Plan = arg.Plan
	u.PlanStatus = string(domain.PlanStatusActive)
	u.PlanStart = sql.NullTime{Time: arg.PlanStart, Valid: true}
	u.PlanEnd = sql.NullTime{Time: arg.PlanEnd, Valid: true}
	u.UsageResetDate = arg.PlanStart
	u.UpdatedAt = f.now()
	f.data.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.data.users {
		if u.Email == arg.Email {
			return repository.User{}, errUniqueViolation
		}
	}
	now := f.now()
	u := repository.User{
		ID:              uuid.New(),
		Email:           arg.Email,
		PasswordHash:    arg.PasswordHash,
		Name:            arg.Name,
		IsStaff:         arg.IsStaff,
		Plan:            string(domain.PlanFree),
		PlanStatus:      string(domain.PlanStatusActive),
		UsageResetDate:  now,
		YearsExperience: arg.YearsExperience,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.data.users[u.ID] = u
	return u, nil
}

// ExpireUserPlan mirrors the guarded UPDATE: it only matches rows still in
// a lapsed paid state.
func (f *fakeStore) ExpireUserPlan(ctx context.Context, arg repository.ExpireUserPlanParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.data.users[arg.ID]
	if !ok || !lapsed(u, arg.Now) {
		return 0, nil
	}
	u.Plan = string(domain.PlanFree)
	u.PlanStatus = string(domain.PlanStatusExpired)
	u.PlanStart = sql.NullTime{}
	u.PlanEnd = sql.NullTime{}
	u.UpdatedAt = f.now()
	f.data.users[u.ID] = u
	return 1, nil
}

func lapsed(u repository.User, now time.Time) bool {
	return !u.IsStaff &&
		(u.Plan == string(domain.PlanPro) || u.Plan == string(domain.PlanProPlus)) &&
		u.PlanStatus != string(domain.PlanStatusExpired) &&
		u.PlanEnd.Valid && u.PlanEnd.Time.Before(now)
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.data.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.data.users[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) ListUsersWithLapsedPlans(ctx context.Context, arg repository.ListUsersWithLapsedPlansParams) ([]repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.User
	for _, u := range f.data.users {
		if lapsed(u, arg.Now) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanEnd.Time.Before(out[j].PlanEnd.Time) })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

// =============================================================================
// Sessions
// =============================================================================

func (f *fakeStore) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := repository.Session{ID: uuid.New(), UserID: arg.UserID, TokenHash: arg.TokenHash, ExpiresAt: arg.ExpiresAt, CreatedAt: f.now()}
	f.data.sessions[s.TokenHash] = s
	return s, nil
}

func (f *fakeStore) DeleteExpiredSessions(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for k, s := range f.data.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.data.sessions, k)
			delete(f.data.sessionValues, s.ID)
		}
	}
	return nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.data.sessions[tokenHash]; ok {
		delete(f.data.sessionValues, s.ID)
	}
	delete(f.data.sessions, tokenHash)
	return nil
}

func (f *fakeStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.data.sessions[tokenHash]
	if !ok || !s.ExpiresAt.After(f.now()) {
		return repository.Session{}, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) DeleteSessionValues(ctx context.Context, arg repository.DeleteSessionValuesParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range arg.Keys {
		delete(f.data.sessionValues[arg.SessionID], k)
	}
	return nil
}

func (f *fakeStore) GetSessionValue(ctx context.Context, arg repository.GetSessionValueParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data.sessionValues[arg.SessionID][arg.Key]
	if !ok {
		return "", sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) SetSessionValue(ctx context.Context, arg repository.SetSessionValueParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data.sessionValues[arg.SessionID] == nil {
		f.data.sessionValues[arg.SessionID] = make(map[string]string)
	}
	f.data.sessionValues[arg.SessionID][arg.Key] = arg.Value
	return nil
}

// =============================================================================
// Payments and trainings
// =============================================================================

func (f *fakeStore) InsertPaymentRecordIfAbsent(ctx context.Context, arg repository.InsertPaymentRecordIfAbsentParams) (repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.data.payments {
		if p.GatewayPaymentID == arg.GatewayPaymentID {
			return repository.PaymentRecord{}, sql.ErrNoRows
		}
	}
	p := repository.PaymentRecord{
		ID:               uuid.New(),
		UserID:           arg.UserID,
		GatewayPaymentID: arg.GatewayPaymentID,
		GatewayOrderID:   arg.GatewayOrderID,
		Provider:         arg.Provider,
		Kind:             arg.Kind,
		Plan:             arg.Plan,
		TrainingID:       arg.TrainingID,
		Amount:           arg.Amount,
		Currency:         arg.Currency,
		Status:           arg.Status,
		RawPayload:       arg.RawPayload,
		CreatedAt:        f.now(),
	}
	f.data.payments = append(f.data.payments, p)
	return p, nil
}

func (f *fakeStore) GetPaymentRecordByGatewayID(ctx context.Context, gatewayPaymentID string) (repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.data.payments {
		if p.GatewayPaymentID == gatewayPaymentID {
			return p, nil
		}
	}
	return repository.PaymentRecord{}, sql.ErrNoRows
}

func (f *fakeStore) GetPaymentRecordForUser(ctx context.Context, arg repository.GetPaymentRecordForUserParams) (repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.data.payments {
		if p.ID == arg.ID && p.UserID == arg.UserID {
			return p, nil
		}
	}
	return repository.PaymentRecord{}, sql.ErrNoRows
}

func (f *fakeStore) ListPaymentRecordsByUser(ctx context.Context, userID uuid.UUID) ([]repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.PaymentRecord
	for i := len(f.data.payments) - 1; i >= 0; i-- {
		if f.data.payments[i].UserID == userID {
			out = append(out, f.data.payments[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetTraining(ctx context.Context, id uuid.UUID) (repository.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.data.trainings[id]
	if !ok {
		return repository.Training{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) CountEnrollmentsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountEnrollmentsByUser")
	var n int64
	for _, e := range f.data.enrollments {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateEnrollmentIfAbsent(ctx context.Context, arg repository.CreateEnrollmentIfAbsentParams) (repository.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.data.enrollments {
		if e.UserID == arg.UserID && e.TrainingID == arg.TrainingID {
			return repository.Enrollment{}, sql.ErrNoRows
		}
	}
	e := repository.Enrollment{ID: uuid.New(), UserID: arg.UserID, TrainingID: arg.TrainingID, PaymentID: arg.PaymentID, CreatedAt: f.now()}
	f.data.enrollments = append(f.data.enrollments, e)
	return e, nil
}

func (f *fakeStore) GetEnrollment(ctx context.Context, arg repository.GetEnrollmentParams) (repository.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.data.enrollments {
		if e.UserID == arg.UserID && e.TrainingID == arg.TrainingID {
			return e, nil
		}
	}
	return repository.Enrollment{}, sql.ErrNoRows
}

// =============================================================================
// Jobs and usage records
// =============================================================================

func (f *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.data.jobs[id]
	if !ok {
		return repository.Job{}, sql.ErrNoRows
	}
	return j, nil
}

func (f *fakeStore) ListJobsByVisibility(ctx context.Context, visibilities []string) ([]repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Job
	for _, j := range f.data.jobs {
		if slices.Contains(visibilities, j.Visibility) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Title < out[k].Title })
	return out, nil
}

func (f *fakeStore) CountJobApplicationsSince(ctx context.Context, arg repository.CountJobApplicationsSinceParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountJobApplicationsSince")
	var n int64
	for _, a := range f.data.applications {
		if a.UserID == arg.UserID && !a.CreatedAt.Before(arg.Since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateJobApplicationIfAbsent(ctx context.Context, arg repository.CreateJobApplicationIfAbsentParams) (repository.JobApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.data.applications {
		if a.UserID == arg.UserID && a.JobID == arg.JobID {
			return repository.JobApplication{}, sql.ErrNoRows
		}
	}
	a := repository.JobApplication{ID: uuid.New(), UserID: arg.UserID, JobID: arg.JobID, Status: "applied", CreatedAt: f.now()}
	f.data.applications = append(f.data.applications, a)
	return a, nil
}

func (f *fakeStore) GetJobApplication(ctx context.Context, arg repository.GetJobApplicationParams) (repository.JobApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.data.applications {
		if a.UserID == arg.UserID && a.JobID == arg.JobID {
			return a, nil
		}
	}
	return repository.JobApplication{}, sql.ErrNoRows
}

func (f *fakeStore) CountAiRequestsSince(ctx context.Context, arg repository.CountAiRequestsSinceParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountAiRequestsSince")
	var n int64
	for _, r := range f.data.aiRequests {
		if r.UserID == arg.UserID && !r.CreatedAt.Before(arg.Since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateAiRequest(ctx context.Context, arg repository.CreateAiRequestParams) (repository.AiRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := repository.AiRequest{ID: uuid.New(), UserID: arg.UserID, Page: arg.Page, TokensUsed: arg.TokensUsed, CreatedAt: f.now()}
	f.data.aiRequests = append(f.data.aiRequests, r)
	return r, nil
}

func (f *fakeStore) CountConsultationSessionsSince(ctx context.Context, arg repository.CountConsultationSessionsSinceParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountConsultationSessionsSince")
	var n int64
	for _, c := range f.data.consultations {
		if c.UserID == arg.UserID && !c.CreatedAt.Before(arg.Since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateConsultationSession(ctx context.Context, arg repository.CreateConsultationSessionParams) (repository.ConsultationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := repository.ConsultationSession{ID: uuid.New(), UserID: arg.UserID, Topic: arg.Topic, Priority: arg.Priority, Status: "requested", CreatedAt: f.now()}
	f.data.consultations = append(f.data.consultations, c)
	return c, nil
}

func (f *fakeStore) CountResumeReviewsSince(ctx context.Context, arg repository.CountResumeReviewsSinceParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountResumeReviewsSince")
	var n int64
	for _, r := range f.data.reviews {
		if r.UserID == arg.UserID && r.Level == arg.Level && !r.CreatedAt.Before(arg.Since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateResumeReview(ctx context.Context, arg repository.CreateResumeReviewParams) (repository.ResumeReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := repository.ResumeReview{ID: uuid.New(), UserID: arg.UserID, Level: arg.Level, Experience: arg.Experience, Feedback: arg.Feedback, CreatedAt: f.now()}
	f.data.reviews = append(f.data.reviews, r)
	return r, nil
}

// =============================================================================
// Notifications
// =============================================================================

func (f *fakeStore) CreateNotification(ctx context.Context, arg repository.CreateNotificationParams) (repository.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := repository.Notification{ID: uuid.New(), UserID: arg.UserID, Kind: arg.Kind, Message: arg.Message, Data: arg.Data, CreatedAt: f.now()}
	f.data.notifications = append(f.data.notifications, n)
	return n, nil
}

func (f *fakeStore) visible(n repository.Notification, userID uuid.UUID, includeAdmin bool) bool {
	if n.IsRead {
		return false
	}
	if n.UserID.Valid {
		return n.UserID.UUID == userID
	}
	return includeAdmin
}

func (f *fakeStore) ListUnreadNotifications(ctx context.Context, arg repository.ListUnreadNotificationsParams) ([]repository.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Notification
	for i := len(f.data.notifications) - 1; i >= 0; i-- {
		if n := f.data.notifications[i]; f.visible(n, arg.UserID, arg.IncludeAdmin) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationsRead(ctx context.Context, arg repository.MarkNotificationsReadParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.data.notifications {
		if f.visible(n, arg.UserID, arg.IncludeAdmin) {
			f.data.notifications[i].IsRead = true
		}
	}
	return nil
}

var _ repository.Store = (*fakeStore)(nil)
