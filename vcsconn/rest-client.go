package vcsconn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RestClient talks to the VCS management REST API. Retries live here, at the
// connector layer, so the components above never re-issue calls themselves.
type RestClient struct {
	baseURL  string
	token    string
	cacheDir string
	http     *http.Client
}

func NewRestClient(baseURL, token, cacheDir string) *RestClient {
	return &RestClient{
		baseURL:  baseURL,
		token:    token,
		cacheDir: cacheDir,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *RestClient) GetOrCheckoutRepository(ctx context.Context, uri string) (Handle, error) {
	dir := c.localDir(uri)
	if _, err := os.Stat(dir); err == nil {
		return Handle{URI: uri, LocalDir: dir}, nil
	}
	err := c.do(ctx, http.MethodPost, "/repositories/checkout",
		map[string]string{"uri": uri, "target": dir}, nil)
	if err != nil {
		return Handle{}, err
	}
	return Handle{URI: uri, LocalDir: dir}, nil
}

func (c *RestClient) Commit(ctx context.Context, handle Handle, message string, author string) error {
	return c.do(ctx, http.MethodPost, "/repositories/commit",
		map[string]string{"dir": handle.LocalDir, "message": message, "author": author}, nil)
}

func (c *RestClient) Push(ctx context.Context, handle Handle) error {
	return c.do(ctx, http.MethodPost, "/repositories/push",
		map[string]string{"dir": handle.LocalDir}, nil)
}

func (c *RestClient) CombineCommitsIntoOne(ctx context.Context, handle Handle) error {
	return c.do(ctx, http.MethodPost, "/repositories/squash",
		map[string]string{"dir": handle.LocalDir}, nil)
}

func (c *RestClient) ResetToRemoteHead(ctx context.Context, handle Handle) error {
	return c.do(ctx, http.MethodPost, "/repositories/reset",
		map[string]string{"dir": handle.LocalDir}, nil)
}

func (c *RestClient) SetPermissions(ctx context.Context, uri string, participant string, perm Permission) error {
	return c.do(ctx, http.MethodPut, "/repositories/permissions",
		map[string]string{"uri": uri, "participant": participant, "permission": perm.String()}, nil)
}

func (c *RestClient) GetLastCommitHash(ctx context.Context, uri string) (string, error) {
	var resp struct {
		Hash string `json:"hash"`
	}
	err := c.do(ctx, http.MethodGet,
		"/repositories/head?uri="+url.QueryEscape(uri), nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.Hash, nil
}

func (c *RestClient) DeleteRepository(ctx context.Context, projectKey string, slug string) error {
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/projects/%s/repositories/%s", url.PathEscape(projectKey), url.PathEscape(slug)), nil, nil)
}

func (c *RestClient) ProjectExists(ctx context.Context, projectKey string) (bool, error) {
	return c.exists(ctx, "/projects/"+url.PathEscape(projectKey))
}

func (c *RestClient) RepositoryExists(ctx context.Context, uri string) (bool, error) {
	return c.exists(ctx, "/repositories?uri="+url.QueryEscape(uri))
}

func (c *RestClient) PruneLocalClone(uri string) error {
	dir := c.localDir(uri)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to prune local clone %s: %w", dir, err)
	}
	return nil
}

func (c *RestClient) localDir(uri string) string {
	return filepath.Join(c.cacheDir, slugFromURI(uri))
}

func slugFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return url.PathEscape(uri)
	}
	return url.PathEscape(u.Host + u.Path)
}

func (c *RestClient) exists(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("vcs request failed with status %d", resp.StatusCode)
	}
	return true, nil
}

// do runs one API call with exponential backoff on transient failures.
// 404 maps to ErrRepositoryNotFound or ErrParticipantNotFound and is not
// retried; other 4xx are permanent too.
func (c *RestClient) do(ctx context.Context, method, path string, body any, out any) error {
	operation := func() error {
		var reader *bytes.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return backoff.Permanent(err)
			}
			reader = bytes.NewReader(encoded)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			if method == http.MethodPut {
				return backoff.Permanent(ErrParticipantNotFound)
			}
			return backoff.Permanent(ErrRepositoryNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("vcs request failed with status %d", resp.StatusCode))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode vcs response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
