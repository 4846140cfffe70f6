package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notsingle/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

const personaColumns = `id::text, owner_id::text, name, gender, interested_in, sexual_intensity,
        active_start, active_end, timezone, status, current_mood, social_battery,
        shadow_profile, directives, loyalty_limit, last_stasis_date, created_at, updated_at`

const matchColumns = `id::text, persona_a::text, persona_b::text, status, heat_level,
        initiator_id::text, last_activity, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
        INSERT INTO users (id, email, gemini_api_key, is_key_valid, last_key_check)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at
    `, u.ID, u.Email, u.GeminiAPIKey, u.IsKeyValid, u.LastKeyCheck).Scan(&u.CreatedAt)
	return mapError(err)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
        SELECT id::text, email, gemini_api_key, is_key_valid, last_key_check, created_at
        FROM users WHERE id=$1
    `, id).Scan(&u.ID, &u.Email, &u.GeminiAPIKey, &u.IsKeyValid, &u.LastKeyCheck, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *PostgresStore) InvalidateUserKey(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_key_valid=false, last_key_check=$2 WHERE id=$1`, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreatePersona(ctx context.Context, p *models.Persona) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	applyPersonaDefaults(p)
	shadow, err := json.Marshal(p.ShadowProfile)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx, `
        INSERT INTO personas (id, owner_id, name, gender, interested_in, sexual_intensity,
            active_start, active_end, timezone, status, current_mood, social_battery,
            shadow_profile, directives, loyalty_limit, last_stasis_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING created_at, updated_at
    `,
		p.ID, p.OwnerID, p.Name, string(p.Gender), gendersToStrings(p.InterestedIn), p.SexualIntensity,
		p.ActiveHours.Start, p.ActiveHours.End, p.ActiveHours.Timezone, string(p.State.Status),
		p.State.CurrentMood, p.State.SocialBattery, shadow, ensureSliceNotNil(p.Directives),
		p.LoyaltyLimit, p.LastStasisDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (s *PostgresStore) GetPersona(ctx context.Context, id string) (*models.Persona, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+personaColumns+` FROM personas WHERE id=$1`, id)
	p, err := scanPersona(row)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersonasByStatus(ctx context.Context, status models.PersonaStatus) ([]*models.Persona, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+personaColumns+` FROM personas WHERE status=$1 ORDER BY created_at, id
    `, string(status))
	if err != nil {
		return nil, err
	}
	return collectPersonas(rows)
}

func (s *PostgresStore) DiscoveryCandidates(ctx context.Context, p *models.Persona, limit int) ([]*models.Persona, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+personaColumns+`
        FROM personas c
        WHERE c.status = 'active'
          AND c.id <> $1
          AND c.gender = ANY($2)
          AND $3 = ANY(c.interested_in)
          AND NOT EXISTS (
              SELECT 1 FROM matches m
              WHERE (m.persona_a = $1 AND m.persona_b = c.id)
                 OR (m.persona_b = $1 AND m.persona_a = c.id)
          )
        ORDER BY c.created_at, c.id
        LIMIT $4
    `, p.ID, gendersToStrings(p.InterestedIn), string(p.Gender), limit)
	if err != nil {
		return nil, err
	}
	return collectPersonas(rows)
}

func (s *PostgresStore) UpdatePersonaState(ctx context.Context, id string, upd PersonaStateUpdate) (*models.Persona, error) {
	var loyalty *int
	if upd.LoyaltyLimit != nil {
		v := models.ClampLoyaltyLimit(*upd.LoyaltyLimit)
		loyalty = &v
	}
	row := s.pool.QueryRow(ctx, `
        UPDATE personas SET
            status = COALESCE(NULLIF($2, ''), status),
            current_mood = COALESCE($3, current_mood),
            social_battery = GREATEST(0, social_battery - $4),
            loyalty_limit = COALESCE($5, loyalty_limit),
            last_stasis_date = CASE WHEN $6 THEN NULL ELSE last_stasis_date END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING `+personaColumns,
		id, string(upd.Status), upd.Mood, upd.EnergyUsed, loyalty, upd.ClearStasisDate)
	p, err := scanPersona(row)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *PostgresStore) SetOwnerPersonasStasis(ctx context.Context, ownerID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE personas SET status='stasis', last_stasis_date=$2, updated_at=$2 WHERE owner_id=$1
    `, ownerID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.HeatLevel = models.ClampHeat(m.HeatLevel)
	if m.LastActivity.IsZero() {
		m.LastActivity = time.Now()
	}
	err := s.pool.QueryRow(ctx, `
        INSERT INTO matches (id, persona_a, persona_b, status, heat_level, initiator_id, last_activity)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at
    `, m.ID, m.PersonaIDs[0], m.PersonaIDs[1], string(m.Status), m.HeatLevel, m.InitiatorID, m.LastActivity,
	).Scan(&m.CreatedAt)
	return mapError(err)
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (s *PostgresStore) ListMatchesForPersona(ctx context.Context, personaID string) ([]*models.Match, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+matchColumns+`
        FROM matches
        WHERE (persona_a=$1 OR persona_b=$1) AND status <> 'blocked'
        ORDER BY last_activity DESC, id
    `, personaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MatchExistsBetween(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM matches
            WHERE (persona_a=$1 AND persona_b=$2) OR (persona_a=$2 AND persona_b=$1)
        )
    `, a, b).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) TransitionMatch(ctx context.Context, id string, from, to models.MatchStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE matches SET status=$3 WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.GetMatch(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) TouchMatch(ctx context.Context, id string, at time.Time, escalate bool) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE matches SET
            last_activity = $2,
            heat_level = CASE WHEN $3 THEN LEAST($4::smallint, heat_level + 1) ELSE heat_level END
        WHERE id=$1
    `, id, at, escalate, models.MaxHeatLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetConversationByMatch(ctx context.Context, matchID string) (*models.Conversation, error) {
	var c models.Conversation
	var memJSON []byte
	err := s.pool.QueryRow(ctx, `
        SELECT id::text, match_id::text, autonomous_memory, created_at, updated_at
        FROM conversations WHERE match_id=$1
    `, matchID).Scan(&c.ID, &c.MatchID, &memJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	c.AutonomousMemory = models.DefaultAutonomousMemory()
	if len(memJSON) > 0 {
		if err := json.Unmarshal(memJSON, &c.AutonomousMemory); err != nil {
			return nil, fmt.Errorf("decode autonomous memory: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
        SELECT sender_id::text, text, type, stage, metadata, sent_at, release_at, is_human
        FROM messages WHERE conversation_id=$1 ORDER BY id
    `, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c.Messages = make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		var typ, stage string
		var metaJSON []byte
		if err := rows.Scan(&m.SenderID, &m.Text, &typ, &stage, &metaJSON, &m.Timestamp, &m.ReleaseAt, &m.IsHuman); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(typ)
		m.Stage = models.Stage(stage)
		if len(metaJSON) > 0 {
			m.Metadata = &models.MessageMetadata{}
			if err := json.Unmarshal(metaJSON, m.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, matchID string, msg models.Message) (string, error) {
	var metaJSON []byte
	if msg.Metadata != nil {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return "", err
		}
		metaJSON = b
	}

	var convID string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO conversations (id, match_id) VALUES ($1, $2)
            ON CONFLICT (match_id) DO NOTHING
        `, uuid.NewString(), matchID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT id::text FROM conversations WHERE match_id=$1`, matchID).Scan(&convID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO messages (conversation_id, sender_id, text, type, stage, metadata, sent_at, release_at, is_human)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        `, convID, msg.SenderID, msg.Text, string(msg.Type), string(msg.Stage), metaJSON,
			msg.Timestamp, msg.ReleaseAt, msg.IsHuman); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, convID)
		return err
	})
	if err != nil {
		return "", mapError(err)
	}
	return convID, nil
}

func (s *PostgresStore) UpdateConversationMemory(ctx context.Context, matchID string, mem models.AutonomousMemory) error {
	b, err := json.Marshal(mem)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
        UPDATE conversations SET autonomous_memory=$2, updated_at=NOW() WHERE match_id=$1
    `, matchID, b)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPersona(row pgx.Row) (*models.Persona, error) {
	var p models.Persona
	var gender, status string
	var interested []string
	var shadow []byte
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &gender, &interested, &p.SexualIntensity,
		&p.ActiveHours.Start, &p.ActiveHours.End, &p.ActiveHours.Timezone, &status,
		&p.State.CurrentMood, &p.State.SocialBattery, &shadow, &p.Directives,
		&p.LoyaltyLimit, &p.LastStasisDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Gender = models.Gender(gender)
	p.State.Status = models.PersonaStatus(status)
	p.InterestedIn = make([]models.Gender, 0, len(interested))
	for _, g := range interested {
		p.InterestedIn = append(p.InterestedIn, models.Gender(g))
	}
	if len(shadow) > 0 {
		if err := json.Unmarshal(shadow, &p.ShadowProfile); err != nil {
			return nil, fmt.Errorf("decode shadow profile: %w", err)
		}
	}
	return &p, nil
}

func collectPersonas(rows pgx.Rows) ([]*models.Persona, error) {
	defer rows.Close()
	// Always return a non-nil slice so JSON encodes as [] instead of null
	out := make([]*models.Persona, 0)
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	var status string
	err := row.Scan(&m.ID, &m.PersonaIDs[0], &m.PersonaIDs[1], &status, &m.HeatLevel,
		&m.InitiatorID, &m.LastActivity, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	return &m, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case "23503", "22P02":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		}
	}
	return err
}

func gendersToStrings(gs []models.Gender) []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, string(g))
	}
	return out
}

func ensureSliceNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
