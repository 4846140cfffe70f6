package relationships

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/internal/store"
	"github.com/notsingle/pkg/models"
)

var now = time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC)

type world struct {
	ctx   context.Context
	store *store.MemoryStore
	svc   *Service
	owner string
	mine  *models.Persona
	their *models.Persona
	match *models.Match
}

func newWorld(t *testing.T, withConversation bool) *world {
	t.Helper()
	w := &world{ctx: context.Background(), store: store.NewMemoryStore(), owner: uuid.NewString()}
	w.svc = NewService(w.store)

	w.mine = &models.Persona{ID: uuid.NewString(), OwnerID: w.owner, Name: "Pia", State: models.PersonaState{SocialBattery: 100}}
	w.their = &models.Persona{ID: uuid.NewString(), OwnerID: uuid.NewString(), Name: "Quinn", State: models.PersonaState{SocialBattery: 100}}
	require.NoError(t, w.store.CreatePersona(w.ctx, w.mine))
	require.NoError(t, w.store.CreatePersona(w.ctx, w.their))

	w.match = &models.Match{
		ID:          uuid.NewString(),
		PersonaIDs:  [2]string{w.mine.ID, w.their.ID},
		Status:      models.MatchMatched,
		HeatLevel:   2,
		InitiatorID: w.their.ID,
	}
	require.NoError(t, w.store.CreateMatch(w.ctx, w.match))

	if withConversation {
		for i, release := range []time.Time{now.Add(-time.Hour), now.Add(20 * time.Minute)} {
			_, err := w.store.AppendMessage(w.ctx, w.match.ID, models.Message{
				SenderID:  w.their.ID,
				Text:      []string{"seen", "in flight"}[i],
				Type:      models.MessageText,
				Stage:     models.StageBanter,
				Timestamp: now.Add(-2 * time.Hour),
				ReleaseAt: release,
			})
			require.NoError(t, err)
		}
	}
	return w
}

func TestReleasedConversation(t *testing.T) {
	w := newWorld(t, true)

	conv, err := w.svc.ReleasedConversation(w.ctx, w.match.ID, now)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "seen", conv.Messages[0].Text)

	conv, err = w.svc.ReleasedConversation(w.ctx, w.match.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)

	_, err = w.svc.ReleasedConversation(w.ctx, uuid.NewString(), now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInjectHumanMessage(t *testing.T) {
	w := newWorld(t, true)

	msg, err := w.svc.InjectHumanMessage(w.ctx, w.owner, w.match.ID, w.mine.ID, "  it's me, the handler ", now)
	require.NoError(t, err)
	assert.Equal(t, "it's me, the handler", msg.Text)
	assert.True(t, msg.IsHuman)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.Equal(t, models.StageBanter, msg.Stage)
	assert.True(t, msg.Released(now))

	conv, err := w.svc.ReleasedConversation(w.ctx, w.match.ID, now)
	require.NoError(t, err)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, "it's me, the handler", last.Text)

	m, err := w.store.GetMatch(w.ctx, w.match.ID)
	require.NoError(t, err)
	assert.True(t, m.LastActivity.Equal(now))

	_, err = w.svc.InjectHumanMessage(w.ctx, w.owner, w.match.ID, w.mine.ID, "again", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDailyLimit)

	// next UTC day resets the limit
	_, err = w.svc.InjectHumanMessage(w.ctx, w.owner, w.match.ID, w.mine.ID, "new day", now.Add(2*time.Hour))
	assert.NoError(t, err)
}

func TestInjectHumanMessage_Rejections(t *testing.T) {
	w := newWorld(t, true)

	_, err := w.svc.InjectHumanMessage(w.ctx, uuid.NewString(), w.match.ID, w.mine.ID, "hi", now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = w.svc.InjectHumanMessage(w.ctx, w.owner, w.match.ID, w.mine.ID, "   ", now)
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = w.svc.InjectHumanMessage(w.ctx, w.owner, uuid.NewString(), w.mine.ID, "hi", now)
	assert.ErrorIs(t, err, ErrNotFound)

	outsider := &models.Persona{ID: uuid.NewString(), OwnerID: w.owner, Name: "Rory"}
	require.NoError(t, w.store.CreatePersona(w.ctx, outsider))
	_, err = w.svc.InjectHumanMessage(w.ctx, w.owner, w.match.ID, outsider.ID, "hi", now)
	assert.ErrorIs(t, err, ErrForbidden)

	empty := newWorld(t, false)
	_, err = empty.svc.InjectHumanMessage(empty.ctx, empty.owner, empty.match.ID, empty.mine.ID, "hi", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlockMatch(t *testing.T) {
	w := newWorld(t, false)

	_, err := w.svc.BlockMatch(w.ctx, uuid.NewString(), w.match.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	m, err := w.svc.BlockMatch(w.ctx, w.owner, w.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchBlocked, m.Status)

	stored, err := w.store.GetMatch(w.ctx, w.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchBlocked, stored.Status)

	m, err = w.svc.BlockMatch(w.ctx, w.owner, w.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchBlocked, m.Status)

	_, err = w.svc.BlockMatch(w.ctx, w.owner, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
