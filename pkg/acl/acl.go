// Package acl evaluates what a given identity may do with a given poll.
//
// The evaluator is pure: it works on the poll, share and identity values it
// is handed plus an injected clock, and performs no I/O of its own. Role
// resolution is a single ordered rule list so precedence stays auditable.
package acl

import (
	"errors"
	"time"

	"pollhub/pkg/data"
	"pollhub/pkg/identity"
)

var ErrForbidden = errors.New("forbidden")

// Role is the effective access role of an identity on a poll. Roles are
// mutually exclusive per evaluation; precedence decides when several could
// apply.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleShareAdmin Role = "shareAdmin"
	RoleInvited    Role = "invited"
	RolePublic     Role = "public"
	RoleNone       Role = "none"
)

// Permission names a single capability of a permission set.
type Permission string

const (
	PermissionView         Permission = "view"
	PermissionEdit         Permission = "edit"
	PermissionDelete       Permission = "delete"
	PermissionVote         Permission = "vote"
	PermissionComment      Permission = "comment"
	PermissionAddOptions   Permission = "addOptions"
	PermissionSeeResults   Permission = "seeResults"
	PermissionSeeUsernames Permission = "seeUsernames"
	PermissionTakeOver     Permission = "takeOver"
	PermissionAllAccess    Permission = "allAccess"
)

// PermissionSet is the computed capability set for one (poll, identity)
// pair. It is derived fresh on every evaluation and never persisted.
type PermissionSet struct {
	View         bool `json:"view"`
	Edit         bool `json:"edit"`
	Delete       bool `json:"delete"`
	Vote         bool `json:"vote"`
	Comment      bool `json:"comment"`
	AddOptions   bool `json:"addOptions"`
	SeeResults   bool `json:"seeResults"`
	SeeUsernames bool `json:"seeUsernames"`
	TakeOver     bool `json:"takeOver"`
	AllAccess    bool `json:"allAccess"`
}

// Has reports whether the set contains the named capability.
func (ps PermissionSet) Has(p Permission) bool {
	switch p {
	case PermissionView:
		return ps.View
	case PermissionEdit:
		return ps.Edit
	case PermissionDelete:
		return ps.Delete
	case PermissionVote:
		return ps.Vote
	case PermissionComment:
		return ps.Comment
	case PermissionAddOptions:
		return ps.AddOptions
	case PermissionSeeResults:
		return ps.SeeResults
	case PermissionSeeUsernames:
		return ps.SeeUsernames
	case PermissionTakeOver:
		return ps.TakeOver
	case PermissionAllAccess:
		return ps.AllAccess
	}
	return false
}

func fullPermissions() PermissionSet {
	return PermissionSet{
		View:         true,
		Edit:         true,
		Delete:       true,
		Vote:         true,
		Comment:      true,
		AddOptions:   true,
		SeeResults:   true,
		SeeUsernames: true,
		TakeOver:     true,
		AllAccess:    true,
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`

	// SeeOwnVotes is true once any role is reached: an identity can always
	// see its own vote rows, independent of the poll's showResults policy.
	SeeOwnVotes bool `json:"seeOwnVotes"`
}

// Engine computes roles and permission sets.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine reading time through now. Pass time.Now in
// production.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Evaluate resolves the effective role of id on poll and derives its
// permission set. share may be nil. Returns ErrForbidden when no rule grants
// access.
func (e *Engine) Evaluate(poll *data.Poll, share *data.Share, id identity.Identity) (Result, error) {
	role := e.resolveRole(poll, share, id)
	if role == RoleNone {
		return Result{Role: RoleNone}, ErrForbidden
	}

	result := Result{Role: role, SeeOwnVotes: true}
	switch role {
	case RoleAdmin, RoleOwner, RoleShareAdmin:
		result.Permissions = fullPermissions()
	default:
		result.Permissions = e.scopedPermissions(poll)
	}
	return result, nil
}

// Require fails with ErrForbidden unless the evaluation grants the required
// permission.
func (e *Engine) Require(poll *data.Poll, share *data.Share, id identity.Identity, required Permission) error {
	result, err := e.Evaluate(poll, share, id)
	if err != nil {
		return err
	}
	if !result.Permissions.Has(required) {
		return ErrForbidden
	}
	return nil
}

// resolveRole applies the precedence rules, first match wins:
// site admin, owner, admin share, active share, open poll.
func (e *Engine) resolveRole(poll *data.Poll, share *data.Share, id identity.Identity) Role {
	if id.IsAdmin {
		return RoleAdmin
	}
	if id.UserID != "" && poll.Owner == id.UserID {
		return RoleOwner
	}
	if share != nil && share.Type == data.ShareTypeAdmin {
		return RoleShareAdmin
	}
	if share.Active() {
		return RoleInvited
	}
	if poll.Access == data.AccessOpen && !poll.Archived() {
		return RolePublic
	}
	return RoleNone
}

// scopedPermissions derives the capability set for Invited and Public roles
// from the poll settings. Edit-level capabilities never apply here.
func (e *Engine) scopedPermissions(poll *data.Poll) PermissionSet {
	now := e.now()
	closed := poll.Closed(now)

	ps := PermissionSet{
		View:         true,
		Vote:         !closed && !poll.Archived(),
		Comment:      poll.AllowComment,
		AddOptions:   poll.ProposalsAllowed(now),
		SeeUsernames: !poll.Anonymous,
	}

	switch poll.ShowResults {
	case data.ShowResultsAlways:
		ps.SeeResults = true
	case data.ShowResultsClosed:
		ps.SeeResults = closed
	}

	return ps
}
