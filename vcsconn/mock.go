package vcsconn

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// InMemConnector is an in-memory RepositoryConnector for tests. Failures can
// be injected per repository URI or per participant.
type InMemConnector struct {
	mu sync.Mutex

	repos       map[string]string // uri -> head commit hash
	projects    map[string]bool
	permissions map[string]Permission // uri|participant -> permission
	clones      map[string]bool       // uri -> has local clone

	FailingURIs         map[string]bool
	MissingParticipants map[string]bool

	SetPermissionCalls []string // "uri|participant|perm" in call order
	DeletedRepos       []string // "projectKey/slug"
	PrunedClones       []string
}

func NewInMemConnector() *InMemConnector {
	return &InMemConnector{
		repos:               make(map[string]string),
		projects:            make(map[string]bool),
		permissions:         make(map[string]Permission),
		clones:              make(map[string]bool),
		FailingURIs:         make(map[string]bool),
		MissingParticipants: make(map[string]bool),
	}
}

func (c *InMemConnector) AddRepository(uri string, headCommit string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[uri] = headCommit
}

func (c *InMemConnector) AddProject(projectKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects[projectKey] = true
}

func (c *InMemConnector) GetOrCheckoutRepository(ctx context.Context, uri string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingURIs[uri] {
		return Handle{}, ErrUnavailable
	}
	if _, ok := c.repos[uri]; !ok {
		return Handle{}, ErrRepositoryNotFound
	}
	c.clones[uri] = true
	return Handle{URI: uri, LocalDir: "/tmp/clones/" + uri}, nil
}

func (c *InMemConnector) Commit(ctx context.Context, handle Handle, message string, author string) error {
	return nil
}

func (c *InMemConnector) Push(ctx context.Context, handle Handle) error {
	return nil
}

func (c *InMemConnector) CombineCommitsIntoOne(ctx context.Context, handle Handle) error {
	return nil
}

func (c *InMemConnector) ResetToRemoteHead(ctx context.Context, handle Handle) error {
	return nil
}

func (c *InMemConnector) SetPermissions(ctx context.Context, uri string, participant string, perm Permission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetPermissionCalls = append(c.SetPermissionCalls,
		fmt.Sprintf("%s|%s|%s", uri, participant, perm))
	if c.FailingURIs[uri] {
		return ErrUnavailable
	}
	if c.MissingParticipants[participant] {
		return ErrParticipantNotFound
	}
	c.permissions[uri+"|"+participant] = perm
	return nil
}

func (c *InMemConnector) PermissionOf(uri string, participant string) Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permissions[uri+"|"+participant]
}

func (c *InMemConnector) GetLastCommitHash(ctx context.Context, uri string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingURIs[uri] {
		return "", ErrUnavailable
	}
	hash, ok := c.repos[uri]
	if !ok {
		return "", ErrRepositoryNotFound
	}
	return hash, nil
}

func (c *InMemConnector) DeleteRepository(ctx context.Context, projectKey string, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := projectKey + "/" + slug
	if c.FailingURIs[key] {
		return ErrUnavailable
	}
	c.DeletedRepos = append(c.DeletedRepos, key)
	for uri := range c.repos {
		if strings.Contains(uri, slug) {
			delete(c.repos, uri)
		}
	}
	return nil
}

func (c *InMemConnector) ProjectExists(ctx context.Context, projectKey string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingURIs[projectKey] {
		return false, ErrUnavailable
	}
	return c.projects[projectKey], nil
}

func (c *InMemConnector) RepositoryExists(ctx context.Context, uri string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingURIs[uri] {
		return false, ErrUnavailable
	}
	_, ok := c.repos[uri]
	return ok, nil
}

func (c *InMemConnector) PruneLocalClone(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clones, uri)
	c.PrunedClones = append(c.PrunedClones, uri)
	return nil
}

func (c *InMemConnector) HasLocalClone(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clones[uri]
}
