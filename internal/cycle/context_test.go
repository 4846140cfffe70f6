package cycle

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/pkg/models"
)

func TestBuildContext_SplitsMatchesByStatus(t *testing.T) {
	f := newFixture(t)
	p := f.addPersona("Pia", models.GenderFemale, models.GenderMale)
	q := f.addPersona("Quinn", models.GenderMale, models.GenderFemale)
	r := f.addPersona("Rory", models.GenderMale, models.GenderFemale)
	s := f.addPersona("Sol", models.GenderMale, models.GenderFemale)
	f.addPersona("Tove", models.GenderMale, models.GenderFemale)
	f.addPersona("Uma", models.GenderFemale, models.GenderMale)

	incoming := f.addMatch(q, p, models.MatchPending, q)
	f.addMatch(p, r, models.MatchPending, p)
	active := f.addMatch(p, s, models.MatchMatched, s)

	dc, err := NewAssembler(f.store).BuildContext(f.ctx, f.persona(p.ID), fixedNow)
	require.NoError(t, err)

	require.Len(t, dc.IncomingRequests, 1)
	assert.Equal(t, IncomingRequest{MatchID: incoming.ID, FromName: "Quinn", FromTraits: []string{"Quinn-trait"}}, dc.IncomingRequests[0])

	require.Len(t, dc.ActiveMatches, 1)
	am := dc.ActiveMatches[0]
	assert.Equal(t, active.ID, am.MatchID)
	assert.Equal(t, "Sol", am.OtherPersona.Name)
	assert.Empty(t, am.LastMessages)
	assert.Nil(t, am.AutonomousMemory)
	assert.Equal(t, 1, dc.MatchedCount)
	assert.False(t, dc.WasInStasis)

	// only Tove is compatible and not already paired with Pia
	assert.False(t, dc.Discovery.LimitReached)
	require.Len(t, dc.Discovery.Candidates, 1)
	assert.Equal(t, "Tove", dc.Discovery.Candidates[0].Name)
	assert.Equal(t, "kind people", dc.Discovery.Candidates[0].MatchPreferences)
}

func TestBuildContext_LoyaltyLimitReached(t *testing.T) {
	f := newFixture(t)
	p := f.addPersona("Pia", models.GenderFemale, models.GenderMale)
	p.LoyaltyLimit = 2
	f.addMatch(p, f.addPersona("Quinn", models.GenderMale, models.GenderFemale), models.MatchMatched, p)
	f.addMatch(p, f.addPersona("Rory", models.GenderMale, models.GenderFemale), models.MatchMatched, p)
	f.addPersona("Sol", models.GenderMale, models.GenderFemale)

	dc, err := NewAssembler(f.store).BuildContext(f.ctx, p, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, dc.MatchedCount)
	assert.True(t, dc.Discovery.LimitReached)
	assert.Empty(t, dc.Discovery.Candidates)

	b, err := json.Marshal(dc.Discovery)
	require.NoError(t, err)
	var sentinel map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &sentinel))
	assert.Equal(t, true, sentinel["limit_reached"])
	assert.Equal(t, loyaltyLimitNote, sentinel["note"])
}

func TestBuildContext_MessageWindow(t *testing.T) {
	f := newFixture(t)
	p := f.addPersona("Pia", models.GenderFemale, models.GenderMale)
	q := f.addPersona("Quinn", models.GenderMale, models.GenderFemale)
	m := f.addMatch(p, q, models.MatchMatched, q)

	for i := 0; i < 25; i++ {
		sender := q.ID
		if i%2 == 0 {
			sender = p.ID
		}
		sent := fixedNow.Add(time.Duration(i-30) * time.Minute)
		msg := models.Message{
			SenderID:  sender,
			Text:      fmt.Sprintf("msg-%d", i),
			Type:      models.MessageText,
			Stage:     models.StageBanter,
			Timestamp: sent,
			ReleaseAt: sent,
		}
		if i == 24 {
			msg.ReleaseAt = fixedNow.Add(10 * time.Minute)
		}
		if i == 23 {
			msg.IsHuman = true
		}
		_, err := f.store.AppendMessage(f.ctx, m.ID, msg)
		require.NoError(t, err)
	}

	dc, err := NewAssembler(f.store).BuildContext(f.ctx, p, fixedNow)
	require.NoError(t, err)
	require.Len(t, dc.ActiveMatches, 1)
	views := dc.ActiveMatches[0].LastMessages
	require.Len(t, views, messageWindow)

	for _, v := range views[:messageWindow-fullTextMessages] {
		assert.Equal(t, olderMessageText, v.Text)
	}
	assert.Equal(t, "msg-20", views[15].Text)
	assert.Equal(t, "me", views[15].Role)
	assert.Equal(t, "them", views[16].Role)
	assert.Equal(t, humanHandlerPrefix+"msg-23", views[18].Text)
	assert.Equal(t, "msg-24", views[19].Text)
	assert.True(t, views[18].Released)
	assert.False(t, views[19].Released)

	require.NotNil(t, dc.ActiveMatches[0].AutonomousMemory)
	assert.Equal(t, models.DefaultMood, dc.ActiveMatches[0].AutonomousMemory.LastEmotionalState)
}

func TestBuildContext_StasisFlag(t *testing.T) {
	f := newFixture(t)
	p := f.addPersona("Pia", models.GenderFemale, models.GenderMale)
	_, err := f.store.SetOwnerPersonasStasis(f.ctx, f.user.ID, fixedNow)
	require.NoError(t, err)

	dc, err := NewAssembler(f.store).BuildContext(f.ctx, f.persona(p.ID), fixedNow)
	require.NoError(t, err)
	assert.True(t, dc.WasInStasis)
}
