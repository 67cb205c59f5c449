// Package vcsconn is the thin adapter in front of the version control
// system. Everything above it talks in repository URIs and project keys and
// never sees vendor specifics.
package vcsconn

import (
	"context"
	"errors"
)

type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionWrite
)

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	}
	return "none"
}

// Handle refers to a locally checked out working copy.
type Handle struct {
	URI      string
	LocalDir string
}

var (
	// ErrRepositoryNotFound means the remote repository does not exist.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrParticipantNotFound means the identity system no longer knows the
	// user whose permissions were being changed.
	ErrParticipantNotFound = errors.New("participant not found in identity system")
	// ErrUnavailable is a transient transport or server failure. Callers on
	// synchronous paths surface it as 502; sweeps record it and continue.
	ErrUnavailable = errors.New("vcs unavailable")
)

// RepositoryConnector is the full surface this core consumes from the VCS.
// The REST client implements it against the real system; InMemConnector
// backs the tests.
type RepositoryConnector interface {
	GetOrCheckoutRepository(ctx context.Context, uri string) (Handle, error)
	Commit(ctx context.Context, handle Handle, message string, author string) error
	Push(ctx context.Context, handle Handle) error
	CombineCommitsIntoOne(ctx context.Context, handle Handle) error
	ResetToRemoteHead(ctx context.Context, handle Handle) error

	SetPermissions(ctx context.Context, uri string, participant string, perm Permission) error
	GetLastCommitHash(ctx context.Context, uri string) (string, error)
	DeleteRepository(ctx context.Context, projectKey string, slug string) error

	ProjectExists(ctx context.Context, projectKey string) (bool, error)
	RepositoryExists(ctx context.Context, uri string) (bool, error)

	// PruneLocalClone removes the locally cached working copy for uri.
	// Remote state is never touched.
	PruneLocalClone(uri string) error
}
