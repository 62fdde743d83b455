package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repository defines the interface for poll persistence
type Repository interface {
	// Poll operations
	FindPoll(ctx context.Context, id string) (*Poll, error)
	InsertPoll(ctx context.Context, poll *Poll) error
	UpdatePoll(ctx context.Context, poll *Poll) error
	DeletePoll(ctx context.Context, id string) error
	ListPollsForUser(ctx context.Context, userID string) ([]*PollRow, error)
	ListPollsByOwner(ctx context.Context, ownerID string) ([]*Poll, error)
	ListAllPolls(ctx context.Context) ([]*Poll, error)
	SearchPolls(ctx context.Context, userID, query string) ([]*PollRow, error)
	TouchLastInteraction(ctx context.Context, id string, at time.Time) error

	// Share operations
	FindShareByToken(ctx context.Context, token string) (*Share, error)
	ListSharesByPoll(ctx context.Context, pollID string) ([]*Share, error)

	// Vote operations
	ListVotesByPoll(ctx context.Context, pollID string) ([]*Vote, error)
	CountVotesByUser(ctx context.Context, pollID, userID string) (int, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository instance
func NewPostgresRepository(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases all database resources
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Pool exposes the connection pool for schema bootstrap.
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

const pollColumns = `id, type, title, description, owner, created, expire, deleted,
	access, anonymous, allow_proposals, proposals_expire, allow_maybe,
	allow_comment, vote_limit, option_limit, show_results, admin_access,
	hide_booked_up, use_no, last_interaction, misc_settings`

func scanPoll(row pgx.Row) (*Poll, error) {
	p := &Poll{}
	err := row.Scan(
		&p.ID, &p.Type, &p.Title, &p.Description, &p.Owner, &p.Created,
		&p.Expire, &p.Deleted, &p.Access, &p.Anonymous, &p.AllowProposals,
		&p.ProposalsExpire, &p.AllowMaybe, &p.AllowComment, &p.VoteLimit,
		&p.OptionLimit, &p.ShowResults, &p.AdminAccess, &p.HideBookedUp,
		&p.UseNo, &p.LastInteraction, &p.MiscSettings,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindPoll retrieves a poll by ID
func (r *PostgresRepository) FindPoll(ctx context.Context, id string) (*Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	poll, err := scanPoll(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying poll: %w", err)
	}

	return poll, nil
}

// InsertPoll persists a new poll
func (r *PostgresRepository) InsertPoll(ctx context.Context, poll *Poll) error {
	if err := poll.Validate(); err != nil {
		return fmt.Errorf("validating poll: %w", err)
	}

	query := `
		INSERT INTO polls (` + pollColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)`

	_, err := r.pool.Exec(ctx, query,
		poll.ID, poll.Type, poll.Title, poll.Description, poll.Owner,
		poll.Created, poll.Expire, poll.Deleted, poll.Access, poll.Anonymous,
		poll.AllowProposals, poll.ProposalsExpire, poll.AllowMaybe,
		poll.AllowComment, poll.VoteLimit, poll.OptionLimit, poll.ShowResults,
		poll.AdminAccess, poll.HideBookedUp, poll.UseNo, poll.LastInteraction,
		poll.MiscSettings,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting poll: %w", err)
	}

	return nil
}

// UpdatePoll updates an existing poll record
func (r *PostgresRepository) UpdatePoll(ctx context.Context, poll *Poll) error {
	if err := poll.Validate(); err != nil {
		return fmt.Errorf("validating poll: %w", err)
	}

	query := `
		UPDATE polls
		SET type = $1, title = $2, description = $3, owner = $4, expire = $5,
			deleted = $6, access = $7, anonymous = $8, allow_proposals = $9,
			proposals_expire = $10, allow_maybe = $11, allow_comment = $12,
			vote_limit = $13, option_limit = $14, show_results = $15,
			admin_access = $16, hide_booked_up = $17, use_no = $18,
			last_interaction = $19, misc_settings = $20
		WHERE id = $21`

	result, err := r.pool.Exec(ctx, query,
		poll.Type, poll.Title, poll.Description, poll.Owner, poll.Expire,
		poll.Deleted, poll.Access, poll.Anonymous, poll.AllowProposals,
		poll.ProposalsExpire, poll.AllowMaybe, poll.AllowComment,
		poll.VoteLimit, poll.OptionLimit, poll.ShowResults, poll.AdminAccess,
		poll.HideBookedUp, poll.UseNo, poll.LastInteraction, poll.MiscSettings,
		poll.ID,
	)

	if err != nil {
		return fmt.Errorf("updating poll: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeletePoll removes a poll row permanently
func (r *PostgresRepository) DeletePoll(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting poll: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListPollsForUser retrieves listing candidates for a user: every poll that
// is not archived or that the user owns, each left-joined with the user's
// own share and vote rows.
func (r *PostgresRepository) ListPollsForUser(ctx context.Context, userID string) ([]*PollRow, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE deleted = 0 OR owner = $1`

	polls, err := r.queryPolls(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	return r.attachUserRows(ctx, polls, userID)
}

// SearchPolls retrieves listing candidates matching a title or description
// substring, joined like ListPollsForUser.
func (r *PostgresRepository) SearchPolls(ctx context.Context, userID, search string) ([]*PollRow, error) {
	query := `SELECT ` + pollColumns + ` FROM polls
		WHERE (deleted = 0 OR owner = $1)
		AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')`

	polls, err := r.queryPolls(ctx, query, userID, search)
	if err != nil {
		return nil, err
	}

	return r.attachUserRows(ctx, polls, userID)
}

func (r *PostgresRepository) attachUserRows(ctx context.Context, polls []*Poll, userID string) ([]*PollRow, error) {
	rows := make([]*PollRow, 0, len(polls))
	for _, poll := range polls {
		row := &PollRow{Poll: poll}

		share, err := r.findShareForUser(ctx, poll.ID, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		row.UserShare = share

		votes, err := r.listVotesByUser(ctx, poll.ID, userID)
		if err != nil {
			return nil, err
		}
		row.UserVotes = votes

		rows = append(rows, row)
	}
	return rows, nil
}

// ListPollsByOwner retrieves all polls owned by a user, archived included
func (r *PostgresRepository) ListPollsByOwner(ctx context.Context, ownerID string) ([]*Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE owner = $1`
	return r.queryPolls(ctx, query, ownerID)
}

// ListAllPolls retrieves every poll, for site-admin listings
func (r *PostgresRepository) ListAllPolls(ctx context.Context) ([]*Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls`
	return r.queryPolls(ctx, query)
}

// TouchLastInteraction updates a poll's relevance timestamp
func (r *PostgresRepository) TouchLastInteraction(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE polls SET last_interaction = $1 WHERE id = $2`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("touching poll: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const shareColumns = `id, token, type, poll_id, user_id, display_name,
	email_address, invitation_sent, reminder_sent, locked, label, deleted`

// FindShareByToken retrieves a share by its access token
func (r *PostgresRepository) FindShareByToken(ctx context.Context, token string) (*Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE token = $1`

	share := &Share{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&share.ID, &share.Token, &share.Type, &share.PollID, &share.UserID,
		&share.DisplayName, &share.EmailAddress, &share.InvitationSent,
		&share.ReminderSent, &share.Locked, &share.Label, &share.Deleted,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying share: %w", err)
	}

	return share, nil
}

// ListSharesByPoll retrieves all shares of a poll
func (r *PostgresRepository) ListSharesByPoll(ctx context.Context, pollID string) ([]*Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE poll_id = $1`

	rows, err := r.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("querying shares: %w", err)
	}
	defer rows.Close()

	var shares []*Share
	for rows.Next() {
		share := &Share{}
		err := rows.Scan(
			&share.ID, &share.Token, &share.Type, &share.PollID, &share.UserID,
			&share.DisplayName, &share.EmailAddress, &share.InvitationSent,
			&share.ReminderSent, &share.Locked, &share.Label, &share.Deleted,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning share row: %w", err)
		}
		shares = append(shares, share)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating share rows: %w", err)
	}

	return shares, nil
}

func (r *PostgresRepository) findShareForUser(ctx context.Context, pollID, userID string) (*Share, error) {
	// Anonymous callers resolve shares by token only. An empty user id must
	// not match external share rows, which store user_id = ''.
	if userID == "" {
		return nil, ErrNotFound
	}

	query := `SELECT ` + shareColumns + ` FROM shares WHERE poll_id = $1 AND user_id = $2`

	share := &Share{}
	err := r.pool.QueryRow(ctx, query, pollID, userID).Scan(
		&share.ID, &share.Token, &share.Type, &share.PollID, &share.UserID,
		&share.DisplayName, &share.EmailAddress, &share.InvitationSent,
		&share.ReminderSent, &share.Locked, &share.Label, &share.Deleted,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user share: %w", err)
	}

	return share, nil
}

const voteColumns = `id, poll_id, user_id, option_id, option_text, answer, deleted`

// ListVotesByPoll retrieves all votes of a poll
func (r *PostgresRepository) ListVotesByPoll(ctx context.Context, pollID string) ([]*Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE poll_id = $1 AND deleted = 0`
	return r.queryVotes(ctx, query, pollID)
}

// CountVotesByUser counts a user's non-deleted votes on a poll
func (r *PostgresRepository) CountVotesByUser(ctx context.Context, pollID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = $1 AND user_id = $2 AND deleted = 0`,
		pollID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting votes: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) listVotesByUser(ctx context.Context, pollID, userID string) ([]*Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes
		WHERE poll_id = $1 AND user_id = $2 AND deleted = 0`
	return r.queryVotes(ctx, query, pollID, userID)
}

// Helper function to query polls
func (r *PostgresRepository) queryPolls(ctx context.Context, query string, args ...any) ([]*Poll, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying polls: %w", err)
	}
	defer rows.Close()

	var polls []*Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning poll row: %w", err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poll rows: %w", err)
	}

	return polls, nil
}

// Helper function to query votes
func (r *PostgresRepository) queryVotes(ctx context.Context, query string, args ...any) ([]*Vote, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying votes: %w", err)
	}
	defer rows.Close()

	var votes []*Vote
	for rows.Next() {
		vote := &Vote{}
		err := rows.Scan(
			&vote.ID, &vote.PollID, &vote.UserID, &vote.OptionID,
			&vote.OptionText, &vote.Answer, &vote.Deleted,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning vote row: %w", err)
		}
		votes = append(votes, vote)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vote rows: %w", err)
	}

	return votes, nil
}

// Helper function to check for PostgreSQL duplicate key errors
func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}
