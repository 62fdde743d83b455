package poll

import (
	"context"
	"errors"
	"fmt"

	"pollhub/pkg/acl"
	"pollhub/pkg/data"
	"pollhub/pkg/identity"
)

// PollView is one listing entry: the poll plus the computed relevance
// thresholds, the caller's permission set and role, and the caller's vote
// count.
type PollView struct {
	*data.Poll

	RelevantThreshold    int64             `json:"relevant_threshold"`
	RelevantThresholdNet int64             `json:"relevant_threshold_net"`
	Permissions          acl.PermissionSet `json:"permissions"`
	CurrentUserRole      acl.Role          `json:"current_user_role"`
	CurrentUserVoteCount int               `json:"current_user_vote_count"`
}

// List assembles the poll listing for an identity. Candidate rows the
// identity may not access are dropped, not reported: absence is the
// user-visible contract for inaccessible polls in a listing, unlike direct
// single-poll access.
func (s *Service) List(ctx context.Context, id identity.Identity) ([]*PollView, error) {
	rows, err := s.repo.ListPollsForUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return []*PollView{}, nil
		}
		return nil, fmt.Errorf("listing polls: %w", err)
	}
	return s.assemble(rows, id), nil
}

// Search assembles listing entries whose title or description matches the
// query, with the same drop-inaccessible policy as List.
func (s *Service) Search(ctx context.Context, id identity.Identity, query string) ([]*PollView, error) {
	rows, err := s.repo.SearchPolls(ctx, id.UserID, query)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return []*PollView{}, nil
		}
		return nil, fmt.Errorf("searching polls: %w", err)
	}
	return s.assemble(rows, id), nil
}

func (s *Service) assemble(rows []*data.PollRow, id identity.Identity) []*PollView {
	offset := s.settings.RelevantOffset(id.UserID)

	views := make([]*PollView, 0, len(rows))
	for _, row := range rows {
		result, err := s.acl.Evaluate(row.Poll, row.UserShare, id)
		if err != nil {
			// no access, no entry
			continue
		}

		net := acl.RelevantThresholdNet(row.Poll)
		views = append(views, &PollView{
			Poll:                 row.Poll,
			RelevantThreshold:    net + offset,
			RelevantThresholdNet: net,
			Permissions:          result.Permissions,
			CurrentUserRole:      result.Role,
			CurrentUserVoteCount: len(row.UserVotes),
		})
	}
	return views
}

// ListForAdmin returns every poll when the identity is a site admin, an
// empty list otherwise.
func (s *Service) ListForAdmin(ctx context.Context, id identity.Identity) ([]*data.Poll, error) {
	if !id.IsAdmin {
		return []*data.Poll{}, nil
	}

	polls, err := s.repo.ListAllPolls(ctx)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return []*data.Poll{}, nil
		}
		return nil, fmt.Errorf("listing polls: %w", err)
	}
	return polls, nil
}
