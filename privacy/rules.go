package privacy

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/syssam/quill"
	ql "github.com/syssam/quill/querylanguage"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant, or an empty string.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context.
//
//	privacy.Policy{Mutation: privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}}
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the
// specified role, and skips otherwise.
func HasRole(role string) QueryMutationRule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of
// the specified roles, and skips otherwise.
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// HasContextValue returns a rule that allows access if the custom
// context of the query holds key with the given value.
func HasContextValue[T comparable](key string, value T) QueryMutationRule {
	eval := func(_ context.Context, q *quill.Query) error {
		if v, ok := q.Value(key); ok && v == any(value) {
			return Allow
		}
		return Skip
	}
	return struct {
		QueryRuleFunc
		MutationRuleFunc
	}{eval, eval}
}

// IsOwner returns a mutation rule that allows an insert or update when
// field holds the viewer's ID in every written row. It skips when the
// field is not written.
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *quill.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		switch match, ok := valuesMatch(m, field, viewer.GetID()); {
		case !ok:
			return Skip
		case match:
			return Allow
		default:
			return Skip
		}
	})
}

// OwnerQueryRule returns a query rule that denies queries without a
// viewer. Combine it with OwnerFilter to restrict rows.
func OwnerQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *quill.Query) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required for owner-filtered query")
		}
		return Skip
	})
}

// OwnerFilter returns a filter restricting selects, updates and deletes
// to the rows whose field equals the viewer's ID.
func OwnerFilter(field string) FilterFunc {
	return func(ctx context.Context, _ *quill.Query) ([]ql.Condition, error) {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return nil, Denyf("privacy: viewer required for owner-filtered query")
		}
		return []ql.Condition{ql.Where(field, ql.OpEQ, viewer.GetID())}, Skip
	}
}

// TenantRule returns a mutation rule that allows access if every written
// row belongs to the viewer's tenant, and denies on a mismatch.
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *quill.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		switch match, ok := valuesMatch(m, field, viewer.GetTenantID()); {
		case !ok:
			return Skip
		case match:
			return Allow
		default:
			return Denyf("privacy: tenant mismatch")
		}
	})
}

// TenantQueryRule returns a query rule that denies queries if no viewer
// or tenant is present.
func TenantQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *quill.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("privacy: tenant required")
		}
		return Skip
	})
}

// TenantFilter returns a filter restricting selects, updates and deletes
// to the viewer's tenant.
func TenantFilter(field string) FilterFunc {
	return func(ctx context.Context, _ *quill.Query) ([]ql.Condition, error) {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return nil, Denyf("privacy: tenant required")
		}
		return []ql.Condition{ql.Where(field, ql.OpEQ, viewer.GetTenantID())}, Skip
	}
}

// AllowMutationOperationRule returns a rule allowing specified mutation operation.
func AllowMutationOperationRule(op quill.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, *quill.Query) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// valuesMatch reports whether field equals want in every row written by
// m. ok is false when no row writes the field.
func valuesMatch(m *quill.Query, field, want string) (match, ok bool) {
	match = true
	for _, row := range m.Values {
		v, has := row[field]
		if !has {
			continue
		}
		ok = true
		if idString(v) != want {
			match = false
		}
	}
	return match && ok, ok
}

func idString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
