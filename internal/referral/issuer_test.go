package referral

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"feastq/internal/db"
	"feastq/internal/models"
)

// fakeStore записывает вызовы и позволяет задать занятые коды и ошибки вставки.
type fakeStore struct {
	*db.MemoryStore

	takenCodes  map[string]bool
	createErrs  []error // ошибки для очередных вызовов CreateReferral
	onCreateErr func()  // вызывается перед возвратом ошибки из createErrs

	seedChecks  []string
	creates     int
	seedLookups int
	lookups     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: db.NewMemoryStore(), takenCodes: map[string]bool{}}
}

func (f *fakeStore) SeedCodeExists(ctx context.Context, code string) (bool, error) {
	f.seedChecks = append(f.seedChecks, code)
	if f.takenCodes[code] {
		return true, nil
	}
	return f.MemoryStore.SeedCodeExists(ctx, code)
}

func (f *fakeStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			if f.onCreateErr != nil {
				f.onCreateErr()
			}
			return err
		}
	}
	return f.MemoryStore.CreateReferral(ctx, r)
}

func (f *fakeStore) FindSeedByCode(ctx context.Context, code string) (models.Referral, error) {
	f.seedLookups++
	return f.MemoryStore.FindSeedByCode(ctx, code)
}

func (f *fakeStore) FindCodeByReferrer(ctx context.Context, referrerID string) (string, error) {
	f.lookups++
	return f.MemoryStore.FindCodeByReferrer(ctx, referrerID)
}

// repeatBytes возвращает источник, выдающий по 8 одинаковых байт на каждый кандидат.
func repeatBytes(values ...byte) *bytes.Reader {
	var buf []byte
	for _, v := range values {
		buf = append(buf, bytes.Repeat([]byte{v}, 8)...)
	}
	return bytes.NewReader(buf)
}

type fakeLimiter struct {
	deny  map[string]bool
	err   error
	calls []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.calls = append(l.calls, key)
	if l.err != nil {
		return false, l.err
	}
	return !l.deny[key], nil
}

func newTestIssuer(store Store, source *bytes.Reader, limiter Limiter) *Issuer {
	var gen *CodeGenerator
	if source != nil {
		gen = NewCodeGenerator(source)
	}
	return NewIssuer(store, gen, limiter, Options{PublicBaseURL: "https://feastq.example"}, nil)
}

func TestGetOrCreateReferralCode_ReturnsSameCode(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, nil, nil)
	ctx := context.Background()

	first, err := issuer.GetOrCreateReferralCode(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, IsGeneratedCode(first), first)

	second, err := issuer.GetOrCreateReferralCode(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.creates)

	seed, err := store.MemoryStore.FindSeedByCode(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "user-1", seed.ReferrerID)
	assert.Equal(t, "pending", seed.Status)
	assert.Zero(t, seed.RewardAmount)
}

func TestGetOrCreateReferralCode_RetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	store.takenCodes["FQ-AAAAAAAA"] = true
	issuer := newTestIssuer(store, repeatBytes(0, 1), nil)

	code, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "FQ-BBBBBBBB", code)
	assert.Equal(t, []string{"FQ-AAAAAAAA", "FQ-BBBBBBBB"}, store.seedChecks)
	assert.Equal(t, 1, store.creates)
}

func TestGetOrCreateReferralCode_Exhausted(t *testing.T) {
	store := newFakeStore()
	// each byte value maps to a distinct symbol; all five candidates collide
	for _, c := range []string{"FQ-AAAAAAAA", "FQ-BBBBBBBB", "FQ-CCCCCCCC", "FQ-DDDDDDDD", "FQ-EEEEEEEE"} {
		store.takenCodes[c] = true
	}
	issuer := newTestIssuer(store, repeatBytes(0, 1, 2, 3, 4, 5), nil)

	_, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
	assert.Len(t, store.seedChecks, 5)
	assert.Zero(t, store.creates)
}

func TestGetOrCreateReferralCode_ConcurrentSeedCreation(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{db.ErrUniqueViolation}
	// another request for the same user wins the insert
	store.onCreateErr = func() {
		_ = store.MemoryStore.CreateReferral(context.Background(), &models.Referral{
			ReferrerID:   "user-1",
			ReferralCode: "FQ-ZZZZZZZZ",
			Status:       "pending",
		})
	}
	issuer := newTestIssuer(store, repeatBytes(0), nil)

	code, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "FQ-ZZZZZZZZ", code)
	assert.Equal(t, 1, store.creates)
}

func TestGetOrCreateReferralCode_InsertCollisionCountsAsAttempt(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{db.ErrUniqueViolation, nil}
	issuer := newTestIssuer(store, repeatBytes(0, 1), nil)

	code, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "FQ-BBBBBBBB", code)
	assert.Equal(t, 2, store.creates)
}

func TestGetOrCreateReferralCode_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("db down")
	store.createErrs = []error{boom}
	issuer := newTestIssuer(store, repeatBytes(0), nil)

	_, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	assert.ErrorIs(t, err, boom)
}

func TestGetOrCreateReferralCode_BrokenRandomSource(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, bytes.NewReader([]byte{1, 2, 3}), nil)

	_, err := issuer.GetOrCreateReferralCode(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Zero(t, store.creates)
}

func seedCode(t *testing.T, store *fakeStore, userID, code string) {
	t.Helper()
	require.NoError(t, store.MemoryStore.CreateReferral(context.Background(), &models.Referral{
		ReferrerID:   userID,
		ReferralCode: code,
		Status:       "pending",
	}))
}

func TestSubmitReferral_NormalizesEmail(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	issuer := newTestIssuer(store, nil, nil)

	ref, err := issuer.SubmitReferral(context.Background(), SubmitRequest{
		ReferralCode: "FQ-ABCDEFGH",
		Email:        "  User@Example.COM ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "pending", ref.Status)
	assert.Equal(t, "user@example.com", ref.ReferredEmail)
	assert.Equal(t, "user-1", ref.ReferrerID)
	assert.Equal(t, int64(500), ref.RewardAmount)

	_, err = issuer.SubmitReferral(context.Background(), SubmitRequest{
		ReferralCode: "FQ-ABCDEFGH",
		Email:        "user@example.com",
	})
	assert.ErrorIs(t, err, ErrDuplicateReferral)
}

func TestSubmitReferral_UnknownCode(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, nil, nil)

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-NOPENOPE", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Zero(t, store.creates)
}

func TestSubmitReferral_DuplicateFromConcurrentInsert(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	store.createErrs = []error{db.ErrUniqueViolation}
	issuer := newTestIssuer(store, nil, nil)

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-ABCDEFGH", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateReferral)
}

func TestSubmitReferral_RateLimitedBeforeLookup(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	limiter := &fakeLimiter{deny: map[string]bool{"referral:submit:ip:203.0.113.7": true}}
	issuer := newTestIssuer(store, nil, limiter)

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{
		ReferralCode: "FQ-ABCDEFGH",
		Email:        "a@example.com",
		ClientIP:     "203.0.113.7",
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Zero(t, store.seedLookups)
	assert.Zero(t, store.creates)
}

func TestSubmitReferral_RateLimitedByEmail(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	limiter := &fakeLimiter{deny: map[string]bool{"referral:submit:email:a@example.com": true}}
	issuer := newTestIssuer(store, nil, limiter)

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{
		ReferralCode: "FQ-ABCDEFGH",
		Email:        "A@Example.com",
		ClientIP:     "203.0.113.7",
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []string{"referral:submit:ip:203.0.113.7", "referral:submit:email:a@example.com"}, limiter.calls)
}

func TestSubmitReferral_LimiterFailureFailsOpen(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	issuer := newTestIssuer(store, nil, &fakeLimiter{err: errors.New("redis unavailable")})

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-ABCDEFGH", Email: "a@example.com"})
	assert.NoError(t, err)
}

func TestSubmitReferral_InvalidInput(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, nil, nil)

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-ABCDEFGH", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-ABCDEFGHIJKLMNOPQRSTU", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, store.seedLookups)
}

func TestSummaryAndStatusTransitions(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, nil, nil)
	ctx := context.Background()

	code, err := issuer.GetOrCreateReferralCode(ctx, "user-1")
	require.NoError(t, err)

	a, err := issuer.SubmitReferral(ctx, SubmitRequest{ReferralCode: code, Email: "a@example.com"})
	require.NoError(t, err)
	b, err := issuer.SubmitReferral(ctx, SubmitRequest{ReferralCode: code, Email: "b@example.com"})
	require.NoError(t, err)
	_, err = issuer.SubmitReferral(ctx, SubmitRequest{ReferralCode: code, Email: "c@example.com"})
	require.NoError(t, err)

	updated, err := issuer.UpdateStatus(ctx, a.ID, "completed")
	require.NoError(t, err)
	assert.True(t, updated.CompletedAt.Valid)

	_, err = issuer.UpdateStatus(ctx, a.ID, "rewarded")
	require.NoError(t, err)

	_, err = issuer.UpdateStatus(ctx, b.ID, "rewarded")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = issuer.UpdateStatus(ctx, b.ID, "cancelled")
	require.NoError(t, err)

	_, err = issuer.UpdateStatus(ctx, "missing", "completed")
	assert.ErrorIs(t, err, ErrReferralNotFound)

	summary, err := issuer.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, code, summary.ReferralCode)
	assert.Equal(t, 3, summary.TotalReferrals)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Rewarded)
	assert.Equal(t, 1, summary.Cancelled)
	assert.Equal(t, int64(500), summary.TotalEarned)
	assert.Equal(t, int64(500), summary.PendingRewards)

	list, err := issuer.ListReferrals(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUpdateStatus_SeedIsNotTransitioned(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	seed, err := store.MemoryStore.FindSeedByCode(context.Background(), "FQ-ABCDEFGH")
	require.NoError(t, err)

	issuer := newTestIssuer(store, nil, nil)
	_, err = issuer.UpdateStatus(context.Background(), seed.ID, "completed")
	assert.ErrorIs(t, err, ErrReferralNotFound)
}

func TestListReferrals_EmptyIsNotNil(t *testing.T) {
	issuer := newTestIssuer(newFakeStore(), nil, nil)
	list, err := issuer.ListReferrals(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestShareLinkAndQRCode(t *testing.T) {
	store := newFakeStore()
	issuer := newTestIssuer(store, repeatBytes(2), nil)

	code, link, err := issuer.ShareLink(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "FQ-CCCCCCCC", code)
	assert.Equal(t, "https://feastq.example/signup?ref=FQ-CCCCCCCC", link)

	png, err := issuer.ShareQRCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func TestExportXLSX(t *testing.T) {
	store := newFakeStore()
	seedCode(t, store, "user-1", "FQ-ABCDEFGH")
	issuer := newTestIssuer(store, nil, nil)
	issuer.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

	_, err := issuer.SubmitReferral(context.Background(), SubmitRequest{ReferralCode: "FQ-ABCDEFGH", Email: "a@example.com"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, issuer.ExportXLSX(context.Background(), "user-1", &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Email", rows[0][0])
	assert.Equal(t, []string{"a@example.com", "FQ-ABCDEFGH", "pending", "5.00", "2026-05-04 10:00"}, rows[1])
}
