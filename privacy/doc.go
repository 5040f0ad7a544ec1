// Package privacy provides rule chains deciding whether a query may run,
// and a quill.Hook that evaluates them.
//
// # Rule evaluation
//
// Rules return Allow, Deny or Skip. A policy evaluates its rules in order
// until one returns Allow or Deny; a policy whose rules all skip allows
// the operation. Policies combines several policies and stops at the
// first Allow.
//
// # Wiring
//
// Hook turns a rule into a quill.Hook. Selects are evaluated with
// EvalQuery, inserts, updates and deletes with EvalMutation:
//
//	policy := privacy.Policy{
//	    Query: privacy.QueryPolicy{
//	        privacy.TenantQueryRule(),
//	    },
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.TenantRule("tenantId"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	}
//	client := quill.NewClient(drv, registry,
//	    quill.WithHook(quill.BeforeQueryPreparation, privacy.Hook(privacy.TenantFilter("tenantId"))),
//	    quill.WithHook(quill.BeforeQueryExecution, privacy.Hook(policy)),
//	)
//
// A denied query fails with a runtime error and Result.Err returns an
// error satisfying quill.IsPrivacyError.
//
// # Viewer
//
// The viewer is stored in the context passed to the terminal call:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"user"}})
//	res := client.SelectFrom("houses").All(ctx)
package privacy
