package project

import (
	"strings"

	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pixelforge/forge/internal/domain"
)

// DefaultFilterCacheSize bounds the compiled list filters kept per service.
const DefaultFilterCacheSize = 256

// filterCache holds compiled go-bexpr evaluators keyed by expression. Filters
// come from callers, so the least recently used are evicted.
type filterCache struct {
	evaluators *lru.Cache[string, *bexpr.Evaluator]
}

func newFilterCache(size int) *filterCache {
	if size < 1 {
		size = DefaultFilterCacheSize
	}
	evaluators, err := lru.New[string, *bexpr.Evaluator](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &filterCache{evaluators: evaluators}
}

func (c *filterCache) compile(expr string) (*bexpr.Evaluator, error) {
	if cached, ok := c.evaluators.Get(expr); ok {
		return cached, nil
	}
	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, domain.Validationf("invalid filter expression: %v", err)
	}
	c.evaluators.Add(expr, evaluator)
	return evaluator, nil
}

func (c *filterCache) len() int { return c.evaluators.Len() }

// filterFields is what a list filter can select on, for example
//
//	status == "Active" and "go" in techStack
func filterFields(v ProjectView) map[string]any {
	return map[string]any{
		"name":          v.Project.Name,
		"status":        string(v.Project.Status),
		"techStack":     []string(v.Project.TechStack),
		"assignedCount": len(v.Assignees),
	}
}

// apply keeps the views the expression matches. A blank expression keeps everything.
func (c *filterCache) apply(expr string, views []ProjectView) ([]ProjectView, error) {
	if strings.TrimSpace(expr) == "" {
		return views, nil
	}
	evaluator, err := c.compile(expr)
	if err != nil {
		return nil, err
	}

	out := make([]ProjectView, 0, len(views))
	for _, v := range views {
		ok, err := evaluator.Evaluate(filterFields(v))
		if err != nil {
			return nil, domain.Validationf("filter: %v", err)
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}
