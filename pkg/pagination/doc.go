// Package pagination parses limit/offset query parameters and builds the
// metadata returned with list responses.
//
// Example usage:
//
//	page, err := pagination.FromRequest(r, pagination.DefaultConfig())
//	if err != nil {
//		// 400 Bad Request
//	}
//	users, total, err := repo.List(ctx, page)
//	meta := pagination.NewMeta(page, len(users), total)
//
// Limits above Config.MaxLimit are clamped rather than rejected.
package pagination
