package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/talentgate/internal/ai"
	aimock "github.com/DukeRupert/talentgate/internal/ai/mock"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/invoice"
	"github.com/DukeRupert/talentgate/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Jobs
// =============================================================================

func TestJobList_Visibility(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewJobService(store, newTestEntitlements(store), testLogger())

	store.addJob("Backend Engineer", domain.PlanFree)
	store.addJob("Staff Engineer", domain.PlanPro)
	store.addJob("Principal Engineer", domain.PlanProPlus)

	tests := []struct {
		name   string
		plan   domain.Plan
		status domain.PlanStatus
		want   int
	}{
		{"free", domain.PlanFree, domain.PlanStatusActive, 1},
		{"pro", domain.PlanPro, domain.PlanStatusActive, 2},
		{"pro plus", domain.PlanProPlus, domain.PlanStatusActive, 3},
		{"pro plus expired", domain.PlanProPlus, domain.PlanStatusExpired, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := store.addUser(tt.plan, tt.status, future(time.Hour))
			jobs, err := svc.List(ctx, user)
			require.NoError(t, err)
			assert.Len(t, jobs, tt.want)
		})
	}
}

func TestJobApply(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewJobService(store, newTestEntitlements(store), testLogger())
	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
	jobID := store.addJob("Backend Engineer", domain.PlanFree)

	result, err := svc.Apply(ctx, user, jobID)
	require.NoError(t, err)
	assert.True(t, result.Created)
	require.NotNil(t, result.Application)
	assert.Equal(t, 0, result.Decision.Used)

	calls := store.totalCountCalls()
	again, err := svc.Apply(ctx, user, jobID)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, result.Application.ID, again.Application.ID)
	assert.Equal(t, calls, store.totalCountCalls(), "re-applying does not consult the quota")
}

func TestJobApply_QuotaDenied(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewJobService(store, newTestEntitlements(store), testLogger())
	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
	store.addApplications(user.ID, 5, testNow.Add(-time.Hour))
	jobID := store.addJob("Backend Engineer", domain.PlanFree)

	result, err := svc.Apply(ctx, user, jobID)
	require.NoError(t, err)
	assert.Nil(t, result.Application)
	assert.False(t, result.Decision.Allowed)
	assert.Equal(t, 5, result.Decision.Used)
}

func TestJobApply_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewJobService(store, newTestEntitlements(store), testLogger())
	user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))

	_, err := svc.Apply(ctx, user, uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	premium := store.addJob("Principal Engineer", domain.PlanProPlus)
	_, err = svc.Apply(ctx, user, premium)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "Pro Plus")
}

// =============================================================================
// Consultations
// =============================================================================

func TestConsultationRequest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewConsultationService(store, newTestEntitlements(store), NewNotificationService(store, testLogger()), testLogger())

	t.Run("free plan is denied", func(t *testing.T) {
		user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
		_, err := svc.Request(ctx, user, "Salary negotiation")
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	})

	t.Run("pro gets one per month", func(t *testing.T) {
		user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))

		session, err := svc.Request(ctx, user, "  Career switch to data  ")
		require.NoError(t, err)
		assert.Equal(t, "Career switch to data", session.Topic)
		assert.False(t, session.Priority)

		_, err = svc.Request(ctx, user, "Follow-up")
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
		assert.Contains(t, domain.ErrorMessage(err), "1 of 1")
	})

	t.Run("pro plus is priority and alerts staff", func(t *testing.T) {
		user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))
		before := store.notificationsFor(uuid.NullUUID{}, domain.NotifyConsultation)

		session, err := svc.Request(ctx, user, "Leadership interview prep")
		require.NoError(t, err)
		assert.True(t, session.Priority)
		assert.Equal(t, before+1, store.notificationsFor(uuid.NullUUID{}, domain.NotifyConsultation))
		assert.Equal(t, 1, store.notificationsFor(uuid.NullUUID{UUID: user.ID, Valid: true}, domain.NotifyConsultation))
	})

	t.Run("topic validation", func(t *testing.T) {
		user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))
		_, err := svc.Request(ctx, user, "   ")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		_, err = svc.Request(ctx, user, strings.Repeat("x", MaxConsultationTopicLength+1))
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

// =============================================================================
// AI assistant and resume review
// =============================================================================

func TestAssistantAsk(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	provider := aimock.New(testLogger())
	svc := NewAssistantService(store, newTestEntitlements(store), provider, testLogger())

	user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))
	reply, err := svc.Ask(ctx, user, "jobs", "How do I stand out for backend roles?")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Reply)
	assert.Equal(t, 1, reply.Decision.Used)
	assert.Equal(t, 50, reply.Decision.Limit)
	assert.Equal(t, 1, provider.CallCount())
	assert.Equal(t, ai.AssistantSystemPrompt("jobs"), provider.LastParams.System)

	store.mu.Lock()
	require.Len(t, store.data.aiRequests, 1)
	assert.Equal(t, "jobs", store.data.aiRequests[0].Page)
	assert.Positive(t, store.data.aiRequests[0].TokensUsed)
	store.mu.Unlock()
}

func TestAssistantAsk_FreePlanDeniedWithoutCallingProvider(t *testing.T) {
	store := newTestStore()
	provider := aimock.New(testLogger())
	svc := NewAssistantService(store, newTestEntitlements(store), provider, testLogger())
	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)

	_, err := svc.Ask(context.Background(), user, "", "Hello")
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Zero(t, provider.CallCount())
}

func TestAssistantAsk_ProviderFailuresCostNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", ai.WrapError("complete", ai.EAIRateLimit), domain.ERATELIMIT},
		{"content policy", ai.EAIContentPolicy, domain.EINVALID},
		{"outage", ai.EAIUnavailable, domain.EUNAVAILABLE},
		{"unknown", fmt.Errorf("boom"), domain.EUNAVAILABLE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore()
			provider := aimock.New(testLogger())
			provider.Err = tt.err
			svc := NewAssistantService(store, newTestEntitlements(store), provider, testLogger())
			user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))

			_, err := svc.Ask(context.Background(), user, "", "Hello")
			assert.Equal(t, tt.want, domain.ErrorCode(err))
			store.mu.Lock()
			assert.Empty(t, store.data.aiRequests)
			store.mu.Unlock()
		})
	}
}

func TestAssistantAsk_NotConfigured(t *testing.T) {
	store := newTestStore()
	svc := NewAssistantService(store, newTestEntitlements(store), nil, testLogger())
	user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))

	_, err := svc.Ask(context.Background(), user, "", "Hello")
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	_, err = svc.Ask(context.Background(), user, "", "  ")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestResumeReview(t *testing.T) {
	ctx := context.Background()
	resume := strings.Repeat("Built and operated payment services in Go. ", 5)

	t.Run("pro basic review", func(t *testing.T) {
		store := newTestStore()
		provider := aimock.New(testLogger())
		provider.Response = "Lead with impact."
		svc := NewResumeService(store, newTestEntitlements(store), provider, testLogger())
		user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))

		review, err := svc.Review(ctx, user, domain.ResumeReviewBasic, resume)
		require.NoError(t, err)
		assert.Equal(t, "Lead with impact.", review.Feedback)
		assert.Equal(t, "fresher", review.Experience)
		assert.Equal(t, 2048, provider.LastParams.MaxTokens)
	})

	t.Run("pro advanced is denied", func(t *testing.T) {
		store := newTestStore()
		provider := aimock.New(testLogger())
		svc := NewResumeService(store, newTestEntitlements(store), provider, testLogger())
		user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(time.Hour))

		_, err := svc.Review(ctx, user, domain.ResumeReviewAdvanced, resume)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
		assert.Zero(t, provider.CallCount())
	})

	t.Run("pro plus advanced", func(t *testing.T) {
		store := newTestStore()
		provider := aimock.New(testLogger())
		svc := NewResumeService(store, newTestEntitlements(store), provider, testLogger())
		user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))

		review, err := svc.Review(ctx, user, domain.ResumeReviewAdvanced, resume)
		require.NoError(t, err)
		assert.Equal(t, domain.ResumeReviewAdvanced, review.Level)
		assert.Zero(t, store.totalCountCalls())
	})

	t.Run("validation", func(t *testing.T) {
		store := newTestStore()
		svc := NewResumeService(store, newTestEntitlements(store), aimock.New(testLogger()), testLogger())
		user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))

		_, err := svc.Review(ctx, user, "expert", resume)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		_, err = svc.Review(ctx, user, domain.ResumeReviewBasic, "too short")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		_, err = svc.Review(ctx, user, domain.ResumeReviewBasic, strings.Repeat("a", MaxResumeLength+1))
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

// =============================================================================
// Invoices
// =============================================================================

type countingRenderer struct {
	invoice.Renderer
	renders int
}

func (r *countingRenderer) Render(ctx context.Context, inv *domain.Invoice, w io.Writer) error {
	r.renders++
	return r.Renderer.Render(ctx, inv, w)
}

func TestInvoice_Description(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	logger := testLogger()
	payments := NewPaymentService(store, nil, nil, nil, domain.PlanCatalog{Currency: "INR"}, logger)
	svc := NewInvoiceService(store, invoice.NewPDFRenderer("TalentGate"), nil, logger)
	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)

	granted, err := payments.Grant(ctx, user, domain.PlanProPlus, "REF-7")
	require.NoError(t, err)

	inv, err := svc.Invoice(ctx, user, granted.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Subscription Plan - Pro Plus", inv.Description)
	assert.Equal(t, "FREE", inv.AmountText())
	assert.True(t, strings.HasPrefix(inv.Number, "INV-202610-"))

	other := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
	_, err = svc.Invoice(ctx, other, granted.Payment.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestInvoice_FreeTrainingDescription(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewInvoiceService(store, invoice.NewPDFRenderer("TalentGate"), nil, testLogger())
	user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))
	trainingID := store.addTraining("System Design", 499900)

	_, err := newTestTrainings(store).Enroll(ctx, user, trainingID)
	require.NoError(t, err)

	records := store.paymentRecords()
	require.Len(t, records, 1)
	inv, err := svc.Invoice(ctx, user, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "System Design", inv.Description)
}

func TestInvoice_DocumentIsCached(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	logger := testLogger()
	cache, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)
	renderer := &countingRenderer{Renderer: invoice.NewPDFRenderer("TalentGate")}
	svc := NewInvoiceService(store, renderer, cache, logger)
	payments := NewPaymentService(store, nil, nil, nil, domain.PlanCatalog{Currency: "INR"}, logger)
	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)

	granted, err := payments.Grant(ctx, user, domain.PlanPro, "REF-8")
	require.NoError(t, err)

	body, contentType, err := svc.Document(ctx, user, granted.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(body), "%PDF-"))

	again, _, err := svc.Document(ctx, user, granted.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, body, again)
	assert.Equal(t, 1, renderer.renders)

	ok, err := cache.Exists(ctx, storage.InvoiceKey(user.ID, granted.Payment.ID))
	require.NoError(t, err)
	assert.True(t, ok)
}

// =============================================================================
// Notifications
// =============================================================================

func TestNotifications_AdminInboxIsShared(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := NewNotificationService(store, testLogger())

	user := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
	staff := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)
	store.setStaff(staff.ID)
	staff.IsStaff = true

	require.NoError(t, svc.Notify(ctx, user.ID, domain.NotifyPlanActivated, "Your plan is active.", map[string]any{"plan": "pro"}))
	require.NoError(t, svc.AlertAdmins(ctx, domain.NotifyAdminAlert, "Check the ledger.", nil))

	list, err := svc.ListUnread(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotifyPlanActivated, list[0].Kind)

	list, err = svc.ListUnread(ctx, staff)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotifyAdminAlert, list[0].Kind)

	require.NoError(t, svc.MarkAllRead(ctx, staff))
	list, err = svc.ListUnread(ctx, staff)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.ListUnread(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 1, "staff reads do not touch user inboxes")
}
