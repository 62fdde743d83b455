package data

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Error variables for consistent error handling
var (
	ErrInvalidID      = errors.New("invalid identifier")
	ErrEmptyTitle     = errors.New("title must not be empty")
	ErrInvalidType    = errors.New("invalid poll type")
	ErrInvalidAccess  = errors.New("invalid access mode")
	ErrInvalidResults = errors.New("invalid show results mode")
	ErrInvalidAnswer  = errors.New("invalid vote answer")
)

// Poll types
const (
	PollTypeDate = "date"
	PollTypeText = "text"
)

// Access modes
const (
	AccessPrivate = "private"
	AccessOpen    = "open"
)

// Show results policies
const (
	ShowResultsAlways = "always"
	ShowResultsClosed = "closed"
	ShowResultsNever  = "never"
)

// Share types
const (
	ShareTypeAdmin        = "admin"
	ShareTypeUser         = "user"
	ShareTypeExternal     = "external"
	ShareTypePublic       = "public"
	ShareTypeGroup        = "group"
	ShareTypeContactGroup = "contactGroup"
	ShareTypeCircle       = "circle"
)

// Vote answers
const (
	AnswerYes   = "yes"
	AnswerNo    = "no"
	AnswerMaybe = "maybe"
)

// Poll represents a single poll record. Timestamps are unix seconds; zero
// means unset (Expire == 0 is open-ended, Deleted == 0 is active).
type Poll struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Owner           string            `json:"owner"`
	Created         int64             `json:"created"`
	Expire          int64             `json:"expire"`
	Deleted         int64             `json:"deleted"`
	Access          string            `json:"access"`
	Anonymous       bool              `json:"anonymous"`
	AllowProposals  bool              `json:"allow_proposals"`
	ProposalsExpire int64             `json:"proposals_expire"`
	AllowMaybe      bool              `json:"allow_maybe"`
	AllowComment    bool              `json:"allow_comment"`
	VoteLimit       int               `json:"vote_limit"`
	OptionLimit     int               `json:"option_limit"`
	ShowResults     string            `json:"show_results"`
	AdminAccess     bool              `json:"admin_access"`
	HideBookedUp    bool              `json:"hide_booked_up"`
	UseNo           bool              `json:"use_no"`
	LastInteraction int64             `json:"last_interaction"`
	MiscSettings    map[string]string `json:"misc_settings,omitempty"`
}

// NewPoll creates a poll with the defaults of a fresh poll: private access,
// results always visible, open-ended, active.
func NewPoll(pollType, title, owner string, now time.Time) (*Poll, error) {
	if !ValidPollType(pollType) {
		return nil, ErrInvalidType
	}
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if owner == "" {
		return nil, errors.New("owner cannot be empty")
	}

	return &Poll{
		ID:              uuid.New().String(),
		Type:            pollType,
		Title:           title,
		Description:     "",
		Owner:           owner,
		Created:         now.Unix(),
		Expire:          0,
		Deleted:         0,
		Access:          AccessPrivate,
		ShowResults:     ShowResultsAlways,
		LastInteraction: now.Unix(),
	}, nil
}

// Validate checks if the poll is valid
func (p *Poll) Validate() error {
	if p.ID == "" {
		return ErrInvalidID
	}
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if !ValidPollType(p.Type) {
		return ErrInvalidType
	}
	if !ValidAccess(p.Access) {
		return ErrInvalidAccess
	}
	if !ValidShowResults(p.ShowResults) {
		return ErrInvalidResults
	}
	if p.Owner == "" {
		return errors.New("owner cannot be empty")
	}
	return nil
}

// Closed reports whether the poll is closed for voting at the given time.
func (p *Poll) Closed(now time.Time) bool {
	return p.Expire != 0 && p.Expire <= now.Unix()
}

// Archived reports whether the poll is soft-deleted.
func (p *Poll) Archived() bool {
	return p.Deleted != 0
}

// ProposalsAllowed reports whether option proposals are accepted at the
// given time.
func (p *Poll) ProposalsAllowed(now time.Time) bool {
	if !p.AllowProposals {
		return false
	}
	if p.ProposalsExpire != 0 && p.ProposalsExpire < now.Unix() {
		return false
	}
	return true
}

func ValidPollType(t string) bool {
	return t == PollTypeDate || t == PollTypeText
}

func ValidAccess(a string) bool {
	return a == AccessPrivate || a == AccessOpen
}

func ValidShowResults(s string) bool {
	return s == ShowResultsAlways || s == ShowResultsClosed || s == ShowResultsNever
}

// Share grants a specific identity or anonymous token holder access to a
// poll. Shares are soft-deleted independently of their poll.
type Share struct {
	ID             string `json:"id"`
	Token          string `json:"token"`
	Type           string `json:"type"`
	PollID         string `json:"poll_id"`
	UserID         string `json:"user_id,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	EmailAddress   string `json:"email_address,omitempty"`
	InvitationSent int64  `json:"invitation_sent"`
	ReminderSent   int64  `json:"reminder_sent"`
	Locked         bool   `json:"locked"`
	Label          string `json:"label,omitempty"`
	Deleted        int64  `json:"deleted"`
}

// token alphabet avoids ambiguous characters
const tokenChars = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewShare creates a share with a fresh token.
func NewShare(shareType, pollID, userID string) (*Share, error) {
	if pollID == "" {
		return nil, errors.New("poll ID cannot be empty")
	}
	if shareType == "" {
		return nil, errors.New("share type cannot be empty")
	}

	token, err := generateToken(16)
	if err != nil {
		return nil, err
	}

	return &Share{
		ID:     uuid.New().String(),
		Token:  token,
		Type:   shareType,
		PollID: pollID,
		UserID: userID,
	}, nil
}

// Validate checks if the share is valid
func (s *Share) Validate() error {
	if s.ID == "" {
		return ErrInvalidID
	}
	if s.PollID == "" {
		return errors.New("poll ID cannot be empty")
	}
	if s.Token == "" {
		return errors.New("token cannot be empty")
	}
	if s.Type == "" {
		return errors.New("share type cannot be empty")
	}
	return nil
}

// Active reports whether the share still grants access.
func (s *Share) Active() bool {
	return s != nil && s.Deleted == 0
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenChars[int(b)%len(tokenChars)]
	}
	return string(buf), nil
}

// Vote represents one answer of one user on one option. Current semantics
// key on the latest non-deleted row per user and option.
type Vote struct {
	ID         string `json:"id"`
	PollID     string `json:"poll_id"`
	UserID     string `json:"user_id"`
	OptionID   string `json:"option_id"`
	OptionText string `json:"option_text,omitempty"`
	Answer     string `json:"answer"`
	Deleted    int64  `json:"deleted"`
}

// NewVote creates a vote record.
func NewVote(pollID, userID, optionID, answer string) (*Vote, error) {
	if pollID == "" {
		return nil, errors.New("poll ID cannot be empty")
	}
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	if answer != AnswerYes && answer != AnswerNo && answer != AnswerMaybe {
		return nil, ErrInvalidAnswer
	}

	return &Vote{
		ID:       uuid.New().String(),
		PollID:   pollID,
		UserID:   userID,
		OptionID: optionID,
		Answer:   answer,
	}, nil
}

// Validate checks if the vote is valid
func (v *Vote) Validate() error {
	if v.ID == "" {
		return ErrInvalidID
	}
	if v.PollID == "" {
		return errors.New("poll ID cannot be empty")
	}
	if v.UserID == "" {
		return errors.New("user ID cannot be empty")
	}
	if v.Answer != AnswerYes && v.Answer != AnswerNo && v.Answer != AnswerMaybe {
		return ErrInvalidAnswer
	}
	return nil
}

// PollRow is one row of the listing query: a poll left-joined with the
// requesting user's share and vote rows.
type PollRow struct {
	Poll      *Poll
	UserShare *Share
	UserVotes []*Vote
}
