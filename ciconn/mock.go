package ciconn

import (
	"context"
	"sync"
)

// InMemConnector is an in-memory BuildConnector for tests.
type InMemConnector struct {
	mu    sync.Mutex
	plans map[string]bool // projectKey|planKey

	FailingPlans map[string]bool // planKey -> delete/trigger fails

	TriggeredBuilds []BuildRef
	DeletedPlans    []string // "projectKey|planKey" in call order
	DeletedProjects []string
}

func NewInMemConnector() *InMemConnector {
	return &InMemConnector{
		plans:        make(map[string]bool),
		FailingPlans: make(map[string]bool),
	}
}

func (c *InMemConnector) AddPlan(projectKey, planKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[projectKey+"|"+planKey] = true
}

func (c *InMemConnector) TriggerBuild(ctx context.Context, ref BuildRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingPlans[ref.PlanKey] {
		return ErrUnavailable
	}
	c.TriggeredBuilds = append(c.TriggeredBuilds, ref)
	return nil
}

func (c *InMemConnector) CheckPlanExists(ctx context.Context, projectKey string, planKey string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingPlans[planKey] {
		return false, ErrUnavailable
	}
	return c.plans[projectKey+"|"+planKey], nil
}

func (c *InMemConnector) DeletePlan(ctx context.Context, projectKey string, planKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailingPlans[planKey] {
		return ErrUnavailable
	}
	delete(c.plans, projectKey+"|"+planKey)
	c.DeletedPlans = append(c.DeletedPlans, projectKey+"|"+planKey)
	return nil
}

func (c *InMemConnector) DeleteProject(ctx context.Context, projectKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.plans {
		if len(key) > len(projectKey) && key[:len(projectKey)+1] == projectKey+"|" {
			delete(c.plans, key)
		}
	}
	c.DeletedProjects = append(c.DeletedProjects, projectKey)
	return nil
}
