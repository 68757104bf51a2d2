package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
)

func TestClaimAvailableAgent(t *testing.T) {
	requireDatabase(t)

	database := openTestDB(t)
	users := repo.NewUserRepo(database)
	presence := repo.NewPresenceRepo(database)
	ctx := context.Background()

	chatAgent := seedAgent(t, users, "chat@example.com")
	allAgent := seedAgent(t, users, "all@example.com")
	voiceAgent := seedAgent(t, users, "voice@example.com")
	offline := seedAgent(t, users, "offline@example.com")

	require.NoError(t, presence.SetByUsername(ctx, chatAgent.Username, model.StatusAvailable, model.AvailabilityChat))
	require.NoError(t, presence.SetByUsername(ctx, allAgent.Username, model.StatusAvailable, model.AvailabilityAll))
	require.NoError(t, presence.SetByUsername(ctx, voiceAgent.Username, model.StatusAvailable, model.AvailabilityVoice))
	require.NoError(t, presence.SetByUsername(ctx, offline.Username, model.StatusOffline, model.AvailabilityChat))

	// customers are never claimed, even when marked available
	customer, err := users.Upsert(ctx, model.UserProfile{UserID: uuid.New(), Username: "sms:customer:15550100", Role: model.RoleCustomer})
	require.NoError(t, err)
	require.NoError(t, presence.SetByUsername(ctx, customer.Username, model.StatusAvailable, model.AvailabilityChat))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
		misses  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := presence.ClaimAvailableAgent(ctx, model.AvailabilityChat)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed = append(claimed, c.Username)
			case errors.Is(err, repo.ErrNoAgentAvailable):
				misses++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, len(claimed)+misses)
	assert.NotEmpty(t, claimed)

	// whatever a racing claim missed is still claimable, and nobody is handed out twice
	for {
		c, err := presence.ClaimAvailableAgent(ctx, model.AvailabilityChat)
		if errors.Is(err, repo.ErrNoAgentAvailable) {
			break
		}
		require.NoError(t, err)
		claimed = append(claimed, c.Username)
		require.LessOrEqual(t, len(claimed), 2, "more claims than available agents: %v", claimed)
	}
	assert.ElementsMatch(t, []string{"chat@example.com", "all@example.com"}, claimed, "each agent is claimed once")

	for _, u := range []string{chatAgent.Username, allAgent.Username} {
		p, err := users.GetByUsername(ctx, u)
		require.NoError(t, err)
		got, err := presence.Get(ctx, p.UserID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusBusy, got.Status, u)
	}

	got, err := presence.Get(ctx, voiceAgent.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, got.Status, "voice-only agent is not claimed for chat")

	c, err := presence.ClaimAvailableAgent(ctx, model.AvailabilityVoice)
	require.NoError(t, err)
	assert.Equal(t, "voice@example.com", c.Username)
}

func TestPresenceSetters(t *testing.T) {
	requireDatabase(t)

	database := openTestDB(t)
	users := repo.NewUserRepo(database)
	presence := repo.NewPresenceRepo(database)
	ctx := context.Background()

	agent := seedAgent(t, users, "agent@example.com")
	p, err := presence.Get(ctx, agent.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, p.Status, "profiles start offline")
	assert.Equal(t, model.AvailabilityAll, p.Availability)
	assert.Equal(t, model.ActivityIdle, p.Activity)

	require.NoError(t, presence.SetByUsername(ctx, agent.Username, model.StatusAvailable, model.AvailabilityChat))
	require.NoError(t, presence.SetStatusByUsername(ctx, agent.Username, model.StatusBusy))
	p, err = presence.Get(ctx, agent.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBusy, p.Status)
	assert.Equal(t, model.AvailabilityChat, p.Availability, "status-only update keeps availability")

	require.NoError(t, presence.SetActivity(ctx, agent.UserID, model.StatusBusy, model.ActivityInCall))
	p, err = presence.Get(ctx, agent.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.ActivityInCall, p.Activity)

	err = presence.SetByUsername(ctx, "nobody@example.com", model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	err = presence.SetStatusByUsername(ctx, "nobody@example.com", model.StatusBusy)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
