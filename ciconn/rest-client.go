package ciconn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RestClient talks to the CI management REST API. Like the VCS client, this
// is where retries happen; callers issue each operation once.
type RestClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRestClient(baseURL, token string) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *RestClient) TriggerBuild(ctx context.Context, ref BuildRef) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/projects/%s/plans/%s/trigger",
			url.PathEscape(ref.ProjectKey), url.PathEscape(ref.PlanKey)),
		map[string]string{
			"repository_uri": ref.RepositoryURI,
			"commit_hash":    ref.CommitHash,
		}, nil)
}

func (c *RestClient) CheckPlanExists(ctx context.Context, projectKey string, planKey string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+fmt.Sprintf("/projects/%s/plans/%s",
			url.PathEscape(projectKey), url.PathEscape(planKey)), nil)
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
		return false, fmt.Errorf("ci request failed with status %d", resp.StatusCode)
	}
	return true, nil
}

func (c *RestClient) DeletePlan(ctx context.Context, projectKey string, planKey string) error {
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/projects/%s/plans/%s",
			url.PathEscape(projectKey), url.PathEscape(planKey)), nil, nil)
}

func (c *RestClient) DeleteProject(ctx context.Context, projectKey string) error {
	return c.do(ctx, http.MethodDelete,
		"/projects/"+url.PathEscape(projectKey), nil, nil)
}

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
			return backoff.Permanent(ErrPlanNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("ci request failed with status %d", resp.StatusCode))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode ci response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
