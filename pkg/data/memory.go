package data

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by tests and local
// experiments. Copies are returned on reads so callers cannot mutate the
// stored state behind the repository's back.
type MemoryRepository struct {
	mu     sync.RWMutex
	polls  map[string]*Poll
	shares map[string]*Share
	votes  map[string]*Vote
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		polls:  make(map[string]*Poll),
		shares: make(map[string]*Share),
		votes:  make(map[string]*Vote),
	}
}

func copyPoll(p *Poll) *Poll {
	c := *p
	if p.MiscSettings != nil {
		c.MiscSettings = make(map[string]string, len(p.MiscSettings))
		for k, v := range p.MiscSettings {
			c.MiscSettings[k] = v
		}
	}
	return &c
}

func copyShare(s *Share) *Share {
	c := *s
	return &c
}

func copyVote(v *Vote) *Vote {
	c := *v
	return &c
}

func (r *MemoryRepository) FindPoll(ctx context.Context, id string) (*Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	poll, ok := r.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPoll(poll), nil
}

func (r *MemoryRepository) InsertPoll(ctx context.Context, poll *Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.polls[poll.ID]; exists {
		return ErrDuplicate
	}
	r.polls[poll.ID] = copyPoll(poll)
	return nil
}

func (r *MemoryRepository) UpdatePoll(ctx context.Context, poll *Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.polls[poll.ID]; !exists {
		return ErrNotFound
	}
	r.polls[poll.ID] = copyPoll(poll)
	return nil
}

func (r *MemoryRepository) DeletePoll(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.polls[id]; !exists {
		return ErrNotFound
	}
	delete(r.polls, id)
	return nil
}

func (r *MemoryRepository) ListPollsForUser(ctx context.Context, userID string) ([]*PollRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*PollRow
	for _, poll := range r.polls {
		if poll.Deleted != 0 && poll.Owner != userID {
			continue
		}
		rows = append(rows, r.rowForUserLocked(poll, userID))
	}
	return rows, nil
}

func (r *MemoryRepository) SearchPolls(ctx context.Context, userID, query string) ([]*PollRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	var rows []*PollRow
	for _, poll := range r.polls {
		if poll.Deleted != 0 && poll.Owner != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(poll.Title), needle) &&
			!strings.Contains(strings.ToLower(poll.Description), needle) {
			continue
		}
		rows = append(rows, r.rowForUserLocked(poll, userID))
	}
	return rows, nil
}

func (r *MemoryRepository) rowForUserLocked(poll *Poll, userID string) *PollRow {
	row := &PollRow{Poll: copyPoll(poll)}
	for _, share := range r.shares {
		if share.PollID == poll.ID && share.UserID == userID && userID != "" {
			row.UserShare = copyShare(share)
			break
		}
	}
	for _, vote := range r.votes {
		if vote.PollID == poll.ID && vote.UserID == userID && vote.Deleted == 0 {
			row.UserVotes = append(row.UserVotes, copyVote(vote))
		}
	}
	return row
}

func (r *MemoryRepository) ListPollsByOwner(ctx context.Context, ownerID string) ([]*Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var polls []*Poll
	for _, poll := range r.polls {
		if poll.Owner == ownerID {
			polls = append(polls, copyPoll(poll))
		}
	}
	return polls, nil
}

func (r *MemoryRepository) ListAllPolls(ctx context.Context) ([]*Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	polls := make([]*Poll, 0, len(r.polls))
	for _, poll := range r.polls {
		polls = append(polls, copyPoll(poll))
	}
	return polls, nil
}

func (r *MemoryRepository) TouchLastInteraction(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	poll, ok := r.polls[id]
	if !ok {
		return ErrNotFound
	}
	poll.LastInteraction = at.Unix()
	return nil
}

// PutShare stores a share. Share lifecycle is owned by an external
// collaborator; this entry point exists for tests and seeding.
func (r *MemoryRepository) PutShare(share *Share) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares[share.ID] = copyShare(share)
}

// PutVote stores a vote, for tests and seeding.
func (r *MemoryRepository) PutVote(vote *Vote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes[vote.ID] = copyVote(vote)
}

func (r *MemoryRepository) FindShareByToken(ctx context.Context, token string) (*Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, share := range r.shares {
		if share.Token == token {
			return copyShare(share), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListSharesByPoll(ctx context.Context, pollID string) ([]*Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var shares []*Share
	for _, share := range r.shares {
		if share.PollID == pollID {
			shares = append(shares, copyShare(share))
		}
	}
	return shares, nil
}

func (r *MemoryRepository) ListVotesByPoll(ctx context.Context, pollID string) ([]*Vote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var votes []*Vote
	for _, vote := range r.votes {
		if vote.PollID == pollID && vote.Deleted == 0 {
			votes = append(votes, copyVote(vote))
		}
	}
	return votes, nil
}

func (r *MemoryRepository) CountVotesByUser(ctx context.Context, pollID, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, vote := range r.votes {
		if vote.PollID == pollID && vote.UserID == userID && vote.Deleted == 0 {
			count++
		}
	}
	return count, nil
}
