// Package permissions holds the pure authorization decision logic. No side
// effects, no I/O: given a security context, decide.
package permissions

import "empgate/internal/security/models"

// Has reports whether the context's permission set contains name exactly.
// An inactive context never satisfies a permission check.
func Has(ctx *models.SecurityContext, name string) bool {
	if ctx == nil || !ctx.Active {
		return false
	}
	for _, p := range ctx.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// CanAccessSensitive reports whether the context's security level grants
// access to sensitive data (MANAGER or ADMIN).
func CanAccessSensitive(ctx *models.SecurityContext) bool {
	if ctx == nil || !ctx.Active {
		return false
	}
	return ctx.SecurityLevel == models.LevelManager || ctx.SecurityLevel == models.LevelAdmin
}
