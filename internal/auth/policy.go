package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/pixelforge/forge/internal/domain"
)

//go:embed model.conf
var casbinModelContent string

// PolicyEngine decides whether a verified session may perform an operation.
// Decisions depend only on the session's role and the operation's declared role
// set; no storage is consulted.
type PolicyEngine struct {
	enforcer *casbin.SyncedEnforcer
	declared map[Operation]bool
	open     map[Operation]bool
}

// NewPolicyEngine loads the role sets into a Casbin enforcer built from the embedded model.
func NewPolicyEngine(roles map[Operation][]domain.Role) (*PolicyEngine, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	engine := &PolicyEngine{
		enforcer: enforcer,
		declared: make(map[Operation]bool, len(roles)),
		open:     make(map[Operation]bool),
	}

	var rules [][]string
	for op, allowed := range roles {
		engine.declared[op] = true
		if len(allowed) == 0 {
			engine.open[op] = true
			continue
		}
		for _, role := range allowed {
			rules = append(rules, []string{string(role), string(op)})
		}
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("load casbin policies: %w", err)
		}
	}

	return engine, nil
}

// Authorize returns nil when claims may perform op and ErrAuthorizationDenied otherwise.
func (e *PolicyEngine) Authorize(claims Claims, op Operation) error {
	if !e.declared[op] {
		return fmt.Errorf("operation %q is not declared: %w", op, domain.ErrAuthorizationDenied)
	}
	if !claims.Role.Valid() {
		return fmt.Errorf("role %q: %w", claims.Role, domain.ErrAuthorizationDenied)
	}
	if e.open[op] {
		return nil
	}

	allowed, err := e.enforcer.Enforce(string(claims.Role), string(op))
	if err != nil {
		return fmt.Errorf("evaluate policy for %s: %w", op, err)
	}
	if !allowed {
		return fmt.Errorf("role %s may not perform %s: %w", claims.Role, op, domain.ErrAuthorizationDenied)
	}
	return nil
}
