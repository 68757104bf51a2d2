package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
)

// PresenceRepo defines the interface for presence operations
type PresenceRepo interface {
	Get(ctx context.Context, userID uuid.UUID) (model.Presence, error)
	SetByDevice(ctx context.Context, deviceID uuid.UUID, status model.Status, availability model.Availability) error
	SetByUsername(ctx context.Context, username string, status model.Status, availability model.Availability) error
	SetStatusByUsername(ctx context.Context, username string, status model.Status) error
	SetActivity(ctx context.Context, userID uuid.UUID, status model.Status, activity model.Activity) error
	ClaimAvailableAgent(ctx context.Context, kind model.Availability) (model.AgentClaim, error)
}

type presenceRepo struct {
	db *sql.DB
}

// NewPresenceRepo creates a new PresenceRepo instance
func NewPresenceRepo(db *sql.DB) PresenceRepo {
	return &presenceRepo{db: db}
}

// Get returns the presence row of a user
func (r *presenceRepo) Get(ctx context.Context, userID uuid.UUID) (model.Presence, error) {
	var (
		p        model.Presence
		deviceID uuid.NullUUID
		status   string
		avail    string
		activity string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, device_id, status, availability, activity, updated_at
		FROM user_presence
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &deviceID, &status, &avail, &activity, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Presence{}, fmt.Errorf("presence %s: %w", userID, ErrNotFound)
		}
		return model.Presence{}, fmt.Errorf("failed to query presence: %w", err)
	}
	if deviceID.Valid {
		p.DeviceID = &deviceID.UUID
	}
	p.Status = model.Status(status)
	p.Availability = model.Availability(avail)
	p.Activity = model.Activity(activity)
	return p, nil
}

// SetByDevice sets the presence of the device's owner and records the device as the one last seen
func (r *presenceRepo) SetByDevice(ctx context.Context, deviceID uuid.UUID, status model.Status, availability model.Availability) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, device_id, status, availability, updated_at)
		SELECT d.user_id, d.id, $2, $3, now()
		FROM devices d
		WHERE d.id = $1
		ON CONFLICT (user_id) DO UPDATE
		SET device_id = EXCLUDED.device_id,
		    status = EXCLUDED.status,
		    availability = EXCLUDED.availability,
		    updated_at = now()
	`, deviceID, string(status), string(availability))
	if err != nil {
		return fmt.Errorf("set presence by device: %w", err)
	}
	return requireRow(result, "device %s", deviceID)
}

// SetByUsername sets the presence of the user with the given vendor username
func (r *presenceRepo) SetByUsername(ctx context.Context, username string, status model.Status, availability model.Availability) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, status, availability, updated_at)
		SELECT u.user_id, $2, $3, now()
		FROM user_profile u
		WHERE u.username = $1
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    availability = EXCLUDED.availability,
		    updated_at = now()
	`, username, string(status), string(availability))
	if err != nil {
		return fmt.Errorf("set presence by username: %w", err)
	}
	return requireRow(result, "user %q", username)
}

// SetStatusByUsername changes only the status, keeping the current availability
func (r *presenceRepo) SetStatusByUsername(ctx context.Context, username string, status model.Status) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_presence p
		SET status = $2, updated_at = now()
		FROM user_profile u
		WHERE u.user_id = p.user_id AND u.username = $1
	`, username, string(status))
	if err != nil {
		return fmt.Errorf("set status by username: %w", err)
	}
	return requireRow(result, "user %q", username)
}

// SetActivity sets status and activity for a call transition
func (r *presenceRepo) SetActivity(ctx context.Context, userID uuid.UUID, status model.Status, activity model.Activity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, status, activity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    activity = EXCLUDED.activity,
		    updated_at = now()
	`, userID, string(status), string(activity))
	if err != nil {
		return fmt.Errorf("set activity: %w", err)
	}
	return nil
}

// claimAttempts bounds the retries of a claim that lost its candidate to a concurrent claim
const claimAttempts = 3

// ClaimAvailableAgent picks the longest-idle AVAILABLE agent accepting kind (or ALL) and marks it
// BUSY in one statement. Rows locked by a concurrent claim are skipped, so two callers never
// get the same agent.
func (r *presenceRepo) ClaimAvailableAgent(ctx context.Context, kind model.Availability) (model.AgentClaim, error) {
	for attempt := 1; ; attempt++ {
		claim, err := r.claimOnce(ctx, kind)
		if !errors.Is(err, ErrNoAgentAvailable) || attempt == claimAttempts {
			return claim, err
		}
		// A candidate committed BUSY between snapshot and lock fails the recheck and the
		// statement returns nothing; try again only while someone is still free.
		free, err := r.hasAvailableAgent(ctx, kind)
		if err != nil {
			return model.AgentClaim{}, err
		}
		if !free {
			return model.AgentClaim{}, ErrNoAgentAvailable
		}
	}
}

func (r *presenceRepo) claimOnce(ctx context.Context, kind model.Availability) (model.AgentClaim, error) {
	var (
		claim model.AgentClaim
		avail string
	)
	err := r.db.QueryRowContext(ctx, `
		UPDATE user_presence p
		SET status = 'BUSY', updated_at = now()
		FROM user_profile u
		WHERE u.user_id = p.user_id
		  AND p.status = 'AVAILABLE'
		  AND p.user_id = (
		    SELECT c.user_id
		    FROM user_presence c
		    JOIN user_profile cu ON cu.user_id = c.user_id
		    WHERE c.status = 'AVAILABLE'
		      AND c.availability IN ($1, 'ALL')
		      AND cu.role = 'agent'
		    ORDER BY c.updated_at
		    LIMIT 1
		    FOR UPDATE OF c SKIP LOCKED
		  )
		RETURNING p.user_id, u.username, u.display_name, p.availability
	`, string(kind)).Scan(&claim.UserID, &claim.Username, &claim.DisplayName, &avail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AgentClaim{}, ErrNoAgentAvailable
		}
		return model.AgentClaim{}, fmt.Errorf("claim agent: %w", err)
	}
	claim.Availability = model.Availability(avail)
	return claim, nil
}

func (r *presenceRepo) hasAvailableAgent(ctx context.Context, kind model.Availability) (bool, error) {
	var free bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
		  SELECT 1
		  FROM user_presence c
		  JOIN user_profile cu ON cu.user_id = c.user_id
		  WHERE c.status = 'AVAILABLE'
		    AND c.availability IN ($1, 'ALL')
		    AND cu.role = 'agent'
		)
	`, string(kind)).Scan(&free)
	if err != nil {
		return false, fmt.Errorf("check available agents: %w", err)
	}
	return free, nil
}

func requireRow(result sql.Result, format string, args ...interface{}) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return nil
}
