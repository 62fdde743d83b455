// Package poll orchestrates poll lifecycle operations and listings. Every
// mutation is guarded by an acl evaluation before it touches storage and
// followed by a lifecycle event.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pollhub/pkg/acl"
	"pollhub/pkg/data"
	"pollhub/pkg/event"
	"pollhub/pkg/identity"
)

var (
	ErrInvalidUsername  = errors.New("invalid target username")
	ErrCreationDisabled = fmt.Errorf("poll creation is disabled: %w", acl.ErrForbidden)
)

// Settings is the application settings provider consumed by the service.
type Settings interface {
	PollCreationAllowed() bool
	RelevantOffset(userID string) int64
}

// Service is the poll lifecycle manager and list assembler.
type Service struct {
	repo     data.Repository
	users    identity.Resolver
	events   event.Publisher
	settings Settings
	acl      *acl.Engine
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the poll service. now is injected for deterministic
// tests; pass time.Now in production.
func NewService(repo data.Repository, users identity.Resolver, events event.Publisher,
	settings Settings, engine *acl.Engine, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		users:    users,
		events:   events,
		settings: settings,
		acl:      engine,
		logger:   logger,
		now:      now,
	}
}

// UpdateRequest is a partial poll patch. Nil fields are left untouched.
type UpdateRequest struct {
	Title           *string
	Description     *string
	Expire          *int64
	Access          *string
	Anonymous       *bool
	AllowProposals  *bool
	ProposalsExpire *int64
	AllowMaybe      *bool
	AllowComment    *bool
	VoteLimit       *int
	OptionLimit     *int
	ShowResults     *string
	AdminAccess     *bool
	HideBookedUp    *bool
	UseNo           *bool
}

// Add creates a new poll owned by the calling identity.
func (s *Service) Add(ctx context.Context, id identity.Identity, pollType, title string) (*data.Poll, error) {
	if !s.settings.PollCreationAllowed() {
		return nil, ErrCreationDisabled
	}
	if !data.ValidPollType(pollType) {
		return nil, data.ErrInvalidType
	}
	if title == "" {
		return nil, data.ErrEmptyTitle
	}

	poll, err := data.NewPoll(pollType, title, id.UserID, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertPoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("inserting poll: %w", err)
	}

	s.publish(ctx, event.PollCreated, poll, id)
	return poll, nil
}

// Get returns a single poll after a direct access evaluation. A denied
// evaluation surfaces as ErrForbidden, a missing poll as ErrNotFound; the
// boundary maps them to 403 and 404.
func (s *Service) Get(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if _, err := s.acl.Evaluate(poll, share, id); err != nil {
		return nil, err
	}
	return poll, nil
}

// Update applies a field patch to a poll.
func (s *Service) Update(ctx context.Context, id identity.Identity, pollID string, req UpdateRequest) (*data.Poll, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(poll, share, id, acl.PermissionEdit); err != nil {
		return nil, err
	}

	// Validate before touching anything
	if req.ShowResults != nil && !data.ValidShowResults(*req.ShowResults) {
		return nil, data.ErrInvalidResults
	}
	if req.Title != nil && *req.Title == "" {
		return nil, data.ErrEmptyTitle
	}
	if req.Access != nil {
		if !data.ValidAccess(*req.Access) {
			return nil, data.ErrInvalidAccess
		}
		// Opening a poll to everyone needs full access rights.
		if *req.Access == data.AccessOpen {
			if err := s.acl.Require(poll, share, id, acl.PermissionAllAccess); err != nil {
				return nil, err
			}
		}
	}

	// A negative expiry would be misread by later acl time comparisons;
	// normalize it to the current server time.
	if req.Expire != nil && *req.Expire < 0 {
		now := s.now().Unix()
		req.Expire = &now
	}

	applyPatch(poll, req)

	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}

	s.publish(ctx, event.PollUpdated, poll, id)
	return poll, nil
}

func applyPatch(poll *data.Poll, req UpdateRequest) {
	if req.Title != nil {
		poll.Title = *req.Title
	}
	if req.Description != nil {
		poll.Description = *req.Description
	}
	if req.Expire != nil {
		poll.Expire = *req.Expire
	}
	if req.Access != nil {
		poll.Access = *req.Access
	}
	if req.Anonymous != nil {
		poll.Anonymous = *req.Anonymous
	}
	if req.AllowProposals != nil {
		poll.AllowProposals = *req.AllowProposals
	}
	if req.ProposalsExpire != nil {
		poll.ProposalsExpire = *req.ProposalsExpire
	}
	if req.AllowMaybe != nil {
		poll.AllowMaybe = *req.AllowMaybe
	}
	if req.AllowComment != nil {
		poll.AllowComment = *req.AllowComment
	}
	if req.VoteLimit != nil {
		poll.VoteLimit = *req.VoteLimit
	}
	if req.OptionLimit != nil {
		poll.OptionLimit = *req.OptionLimit
	}
	if req.ShowResults != nil {
		poll.ShowResults = *req.ShowResults
	}
	if req.AdminAccess != nil {
		poll.AdminAccess = *req.AdminAccess
	}
	if req.HideBookedUp != nil {
		poll.HideBookedUp = *req.HideBookedUp
	}
	if req.UseNo != nil {
		poll.UseNo = *req.UseNo
	}
}

// ToggleArchive moves a poll to the archive or restores it.
func (s *Service) ToggleArchive(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(poll, share, id, acl.PermissionDelete); err != nil {
		return nil, err
	}

	if poll.Deleted != 0 {
		poll.Deleted = 0
	} else {
		poll.Deleted = s.now().Unix()
	}

	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}

	if poll.Deleted != 0 {
		s.publish(ctx, event.PollArchived, poll, id)
	} else {
		s.publish(ctx, event.PollRestored, poll, id)
	}
	return poll, nil
}

// Close closes a poll for voting. The expiry is backdated a few seconds so
// the close takes effect even against an acl check in the same second.
func (s *Service) Close(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	return s.toggleClose(ctx, id, pollID, s.now().Unix()-5)
}

// Reopen clears a poll's expiry.
func (s *Service) Reopen(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	return s.toggleClose(ctx, id, pollID, 0)
}

func (s *Service) toggleClose(ctx context.Context, id identity.Identity, pollID string, expiry int64) (*data.Poll, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(poll, share, id, acl.PermissionEdit); err != nil {
		return nil, err
	}

	poll.Expire = expiry

	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}

	if expiry > 0 {
		s.publish(ctx, event.PollClosed, poll, id)
	} else {
		s.publish(ctx, event.PollReopened, poll, id)
	}
	return poll, nil
}

// Delete removes a poll row permanently, as opposed to archiving.
func (s *Service) Delete(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(poll, share, id, acl.PermissionDelete); err != nil {
		return nil, err
	}

	s.publish(ctx, event.PollDeleted, poll, id)

	if err := s.repo.DeletePoll(ctx, poll.ID); err != nil {
		return nil, fmt.Errorf("deleting poll: %w", err)
	}
	return poll, nil
}

// Clone creates a fresh private poll copying the source's configuration.
func (s *Service) Clone(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, error) {
	origin, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(origin, share, id, acl.PermissionView); err != nil {
		return nil, err
	}

	now := s.now()
	clone, err := data.NewPoll(origin.Type, "Clone of "+origin.Title, id.UserID, now)
	if err != nil {
		return nil, err
	}
	clone.Description = origin.Description
	clone.Expire = origin.Expire
	clone.Anonymous = origin.Anonymous
	clone.AllowMaybe = origin.AllowMaybe
	clone.VoteLimit = origin.VoteLimit
	clone.ShowResults = origin.ShowResults
	clone.AdminAccess = origin.AdminAccess

	if err := s.repo.InsertPoll(ctx, clone); err != nil {
		return nil, fmt.Errorf("inserting poll: %w", err)
	}

	s.publish(ctx, event.PollCreated, clone, id)
	return clone, nil
}

// Transfer moves a poll to a new owner. The target user must resolve.
// There is no acl gate here: the caller is trusted admin tooling, reached
// only through privileged command surfaces. Interactive handover goes
// through Takeover, which enforces the site-admin flag itself.
func (s *Service) Transfer(ctx context.Context, id identity.Identity, pollID, targetUser string) (*data.Poll, error) {
	if _, err := s.users.Resolve(ctx, targetUser); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, targetUser)
	}

	poll, err := s.repo.FindPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	return s.executeTransfer(ctx, id, poll, targetUser)
}

// TransferAll moves every poll owned by sourceUser to targetUser. Like
// Transfer, it trusts its caller to be admin tooling.
func (s *Service) TransferAll(ctx context.Context, id identity.Identity, sourceUser, targetUser string) ([]*data.Poll, error) {
	if _, err := s.users.Resolve(ctx, targetUser); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, targetUser)
	}

	polls, err := s.repo.ListPollsByOwner(ctx, sourceUser)
	if err != nil {
		return nil, fmt.Errorf("listing polls by owner: %w", err)
	}

	for i, poll := range polls {
		transferred, err := s.executeTransfer(ctx, id, poll, targetUser)
		if err != nil {
			return nil, err
		}
		polls[i] = transferred
	}
	return polls, nil
}

func (s *Service) executeTransfer(ctx context.Context, id identity.Identity, poll *data.Poll, targetUser string) (*data.Poll, error) {
	poll.Owner = targetUser
	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}
	s.publish(ctx, event.PollOwnerChange, poll, id)
	return poll, nil
}

// Takeover hands a poll to a new owner via the site-admin override. The
// takeover event fires before the mutation so consumers see the old owner.
func (s *Service) Takeover(ctx context.Context, id identity.Identity, pollID, targetUser string) (*data.Poll, error) {
	if !id.IsAdmin {
		return nil, acl.ErrForbidden
	}
	target, err := s.users.Resolve(ctx, targetUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, targetUser)
	}

	poll, err := s.repo.FindPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	// consumers of the takeover event see the poll before the owner change
	snapshot := *poll
	s.publish(ctx, event.PollTakeover, &snapshot, id)

	poll.Owner = target.UserID
	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}
	return poll, nil
}

// SetLastInteraction touches the poll's relevance timestamp.
func (s *Service) SetLastInteraction(ctx context.Context, pollID string) error {
	if pollID == "" {
		return nil
	}
	return s.repo.TouchLastInteraction(ctx, pollID, s.now())
}

// Participant is a voting user's contact entry.
type Participant struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address"`
}

// ParticipantEmails collects contact entries of everyone who voted on a
// poll. Requires edit rights.
func (s *Service) ParticipantEmails(ctx context.Context, id identity.Identity, pollID string) ([]Participant, error) {
	poll, share, err := s.load(ctx, id, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.acl.Require(poll, share, id, acl.PermissionEdit); err != nil {
		return nil, err
	}

	votes, err := s.repo.ListVotesByPoll(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("listing votes: %w", err)
	}

	seen := make(map[string]bool)
	var list []Participant
	for _, vote := range votes {
		if seen[vote.UserID] {
			continue
		}
		seen[vote.UserID] = true

		user, err := s.users.Resolve(ctx, vote.UserID)
		if err != nil {
			// external participant without an account, skip
			continue
		}
		list = append(list, Participant{
			DisplayName:  user.DisplayName,
			EmailAddress: user.EmailAddress,
		})
	}
	return list, nil
}

// ValidEnum lists the accepted values for the configurable poll properties.
func (s *Service) ValidEnum() map[string][]string {
	return map[string][]string{
		"pollType":    {data.PollTypeDate, data.PollTypeText},
		"access":      {data.AccessPrivate, data.AccessOpen},
		"showResults": {data.ShowResultsAlways, data.ShowResultsClosed, data.ShowResultsNever},
	}
}

// load fetches a poll together with the identity's share on it.
func (s *Service) load(ctx context.Context, id identity.Identity, pollID string) (*data.Poll, *data.Share, error) {
	poll, err := s.repo.FindPoll(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}

	share, err := s.shareFor(ctx, poll, id)
	if err != nil {
		return nil, nil, err
	}
	return poll, share, nil
}

// shareFor resolves the identity's share on a poll: by token for anonymous
// callers, by user id otherwise. Absence of a share is not an error.
func (s *Service) shareFor(ctx context.Context, poll *data.Poll, id identity.Identity) (*data.Share, error) {
	if id.ShareToken != "" {
		share, err := s.repo.FindShareByToken(ctx, id.ShareToken)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if share.PollID != poll.ID {
			return nil, nil
		}
		return share, nil
	}

	if id.UserID == "" {
		return nil, nil
	}

	shares, err := s.repo.ListSharesByPoll(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}
	for _, share := range shares {
		if share.UserID == id.UserID {
			return share, nil
		}
	}
	return nil, nil
}

func (s *Service) publish(ctx context.Context, typ event.Type, poll *data.Poll, id identity.Identity) {
	ev := event.Event{
		Type:      typ,
		Poll:      poll,
		ActorID:   id.UserID,
		Timestamp: s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publishing lifecycle event failed",
			zap.String("event", string(typ)),
			zap.String("pollId", poll.ID),
			zap.Error(err))
	}
}
