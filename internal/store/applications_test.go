package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
)

func TestInsertApplication_ForcesPending(t *testing.T) {
	s := createTestStore(t)
	u := seedUser(t, s, "alice")

	id, err := s.InsertApplication(context.Background(), model.Application{
		UserID:         u.ID,
		Kind:           model.RequestCreate,
		Name:           "shop.example.org",
		RecordType:     model.RecordCNAME,
		RecordValue:    "shops.host.example.net",
		Status:         model.StatusApproved,
		VotingDeadline: testNow.Add(time.Hour),
		CreatedAt:      testNow,
	})
	require.NoError(t, err)

	app, err := s.GetApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, app.Status)
	assert.Equal(t, "alice", app.Username)
	assert.Equal(t, "alice@example.org", app.Email)
	assert.Equal(t, testNow.Add(time.Hour), app.VotingDeadline)
	assert.Nil(t, app.ResolvedAt)
	assert.Empty(t, app.TargetRecordID)
}

func TestGetApplication_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetApplication(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimApplication_OnlyFromPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	app := seedApplication(t, s, seedUser(t, s, "alice"), time.Hour)

	claimed, err := s.ClaimApplication(ctx, app.ID, model.StatusRejected, "fast-track reject", testNow)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimApplication(ctx, app.ID, model.StatusApproved, "late", testNow)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, "fast-track reject", got.Notes)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, testNow, *got.ResolvedAt)
}

func TestClaimApplication_RejectsNonTerminal(t *testing.T) {
	s := createTestStore(t)
	app := seedApplication(t, s, seedUser(t, s, "alice"), time.Hour)

	_, err := s.ClaimApplication(context.Background(), app.ID, model.StatusPending, "", testNow)
	assert.Error(t, err)
}

func TestClaimApplication_MissingApplication(t *testing.T) {
	s := createTestStore(t)

	claimed, err := s.ClaimApplication(context.Background(), 999, model.StatusExpired, "", testNow)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimApplication_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	s := createTestStore(t)
	app := seedApplication(t, s, seedUser(t, s, "alice"), time.Hour)

	const claimers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []model.Status
		errs    []error
	)
	start := make(chan struct{})

	for i := 0; i < claimers; i++ {
		status := model.StatusApproved
		if i%2 == 1 {
			status = model.StatusExpired
		}
		wg.Add(1)
		go func(i int, status model.Status) {
			defer wg.Done()
			<-start
			claimed, err := s.ClaimApplication(context.Background(), app.ID, status, fmt.Sprintf("claimer %d", i), testNow)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if claimed {
				winners = append(winners, status)
			}
		}(i, status)
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, winners, 1, "exactly one claimer must win")

	got, err := s.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Status)
}

func TestMarkApplicationFailed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	app := seedApplication(t, s, seedUser(t, s, "alice"), time.Hour)

	// Pending applications cannot be compensated.
	err := s.MarkApplicationFailed(ctx, app.ID, "dns failed")
	assert.ErrorIs(t, err, ErrNotFound)

	claimed, err := s.ClaimApplication(ctx, app.ID, model.StatusApproved, "voting closed", testNow)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, s.MarkApplicationFailed(ctx, app.ID, "dns failed"))

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, "dns failed", got.Notes)

	// error is final: neither a second compensation nor a claim moves it.
	err = s.MarkApplicationFailed(ctx, app.ID, "again")
	assert.True(t, errors.Is(err, ErrNotFound))
	claimed, err = s.ClaimApplication(ctx, app.ID, model.StatusApproved, "retry", testNow)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestListDueApplications(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "alice")

	past := seedApplication(t, s, u, -time.Minute)
	exact := seedApplication(t, s, u, 0)
	future := seedApplication(t, s, u, time.Hour)
	resolved := seedApplication(t, s, u, -time.Hour)
	_, err := s.ClaimApplication(ctx, resolved.ID, model.StatusRejected, "", testNow)
	require.NoError(t, err)

	due, err := s.ListDueApplications(ctx, testNow)
	require.NoError(t, err)

	var ids []int64
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []int64{past.ID, exact.ID}, ids)
	assert.NotContains(t, ids, future.ID)
}

func TestListApplications_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	a1 := seedApplication(t, s, alice, time.Hour)
	seedApplication(t, s, bob, time.Hour)
	_, err := s.ClaimApplication(ctx, a1.ID, model.StatusApproved, "", testNow)
	require.NoError(t, err)

	all, err := s.ListApplications(ctx, ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListApplications(ctx, ApplicationFilter{UserID: bob.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "bob", mine[0].Username)

	approved, err := s.ListApplications(ctx, ApplicationFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a1.ID, approved[0].ID)

	old, err := s.ListApplications(ctx, ApplicationFilter{CreatedBefore: testNow})
	require.NoError(t, err)
	assert.Empty(t, old)
	assert.NotNil(t, old, "empty result must be a non-nil slice")
}

func TestSetReviewMessageID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	app := seedApplication(t, s, seedUser(t, s, "alice"), time.Hour)

	require.NoError(t, s.SetReviewMessageID(ctx, app.ID, "5521"))

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "5521", got.ReviewMessageID)
	assert.Equal(t, model.StatusPending, got.Status)

	assert.ErrorIs(t, s.SetReviewMessageID(ctx, 999, "1"), ErrNotFound)
}
