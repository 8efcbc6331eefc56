// Package auth enforces static bearer-token authentication on HTTP requests.
//
// # Decision
//
// When authentication is enabled, every request outside the exempt paths must
// carry an Authorization header of the exact form "Bearer <token>":
//
//   - missing header: 401 {"error": "Missing Authorization header"}
//   - wrong scheme: 401 {"error": "Invalid Authorization header format. Use: Bearer <token>"}
//   - wrong token: 403 {"error": "Invalid authentication token"}
//
// Exempt paths (/healthz, /health, /health/deep, /version, /_info) are never
// checked.
//
// # Settings
//
// The middleware reads the enabled flag and expected token from a Settings
// value on every request, so a configuration reload takes effect without a
// restart. config.Provider satisfies Settings.
package auth
