package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replygram/replygram/internal/models"
)

func TestMemoryStorage_RulesInsertionOrder(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for _, p := range []string{"first", "second", "third"} {
		require.NoError(t, store.AddRule(ctx, &models.Rule{
			AccountID: "shop",
			MediaID:   "m1",
			Patterns:  []string{p},
		}))
	}

	rules, err := store.ListRules(ctx, "shop", "m1")
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"first"}, rules[0].Patterns)
	assert.Equal(t, []string{"third"}, rules[2].Patterns)
	assert.Less(t, rules[0].ID, rules[1].ID)
}

func TestMemoryStorage_ListRulesScoping(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.AddRule(ctx, &models.Rule{AccountID: "shop", MediaID: "m1", Patterns: []string{"a"}}))
	require.NoError(t, store.AddRule(ctx, &models.Rule{AccountID: "shop", MediaID: "m2", Patterns: []string{"b"}}))
	require.NoError(t, store.AddRule(ctx, &models.Rule{AccountID: "studio", MediaID: "m1", Patterns: []string{"c"}}))

	scoped, err := store.ListRules(ctx, "shop", "m1")
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	byAccount, err := store.ListRules(ctx, "shop", "")
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)

	all, err := store.ListRules(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStorage_MarkProcessedOnce(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	inserted, err := store.MarkProcessed(ctx, "shop", "c1", "m1")
	require.NoError(t, err)
	assert.True(t, inserted)

	again, err := store.MarkProcessed(ctx, "shop", "c1", "m1")
	require.NoError(t, err)
	assert.False(t, again, "marking an already-processed comment is a no-op")

	done, err := store.IsProcessed(ctx, "shop", "c1")
	require.NoError(t, err)
	assert.True(t, done)

	// same comment id under a different account is a different key
	other, err := store.IsProcessed(ctx, "studio", "c1")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestMemoryStorage_MarkProcessedConcurrent(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	inserted := make([]bool, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted[i], errs[i] = store.MarkProcessed(ctx, "shop", "c1", "m1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if inserted[i] {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent writer may create the record")
}

func TestMemoryStorage_SessionReplace(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	session, err := store.GetSession(ctx, "shop")
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, store.SaveSession(ctx, &models.Session{AccountID: "shop", Token: "old"}))
	require.NoError(t, store.SaveSession(ctx, &models.Session{AccountID: "shop", Token: "new"}))

	session, err = store.GetSession(ctx, "shop")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "new", session.Token)

	require.NoError(t, store.DeleteSession(ctx, "shop"))
	session, err = store.GetSession(ctx, "shop")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestMemoryStorage_Accounts(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	_, err := store.GetAccount(ctx, "shop")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, store.UpsertAccount(ctx, &models.Account{Username: "shop", Password: "a"}))
	require.NoError(t, store.UpsertAccount(ctx, &models.Account{Username: "shop", Password: "b"}))

	account, err := store.GetAccount(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "b", account.Password)

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
