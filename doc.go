// Package auth implements session and identity management for the
// student, teacher, parent and admin portals.
//
// Request flow:
//   - TokenService issues and verifies signed session tokens. It never
//     evaluates expiry, so callers can tell "expired" from "forged".
//   - Resolver turns a raw token into a Principal: signature, expiry and
//     then a lookup of the server side Session record, which is what makes
//     logout effective before the token expires.
//   - Guard exposes RequireAuth, RequireRole and GetOptionalAuth. Roles are
//     matched exactly; there is no hierarchy, ADMIN does not satisfy TEACHER.
//
// Maintenance:
//   - VerificationWorkflow manages single use email verification tokens.
//     Consume returns an outcome (success, already verified, expired, not
//     found) and only returns an error for datastore failures.
//   - Janitor deletes expired and idle sessions using one "now" per sweep.
//     It can run on demand or on a cron schedule.
//
// The datastore handle is injected through RepositoryManager; nothing in
// this package holds a global connection.
package auth
