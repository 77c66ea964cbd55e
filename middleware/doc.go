// Package middleware exposes HTTP adapters over authcore.Engine:
// request authentication, role gating, and credential cookie handling.
//
// # Guards
//
//   - [Guard] verifies the access credential (header or cookie) and
//     injects the authenticated [authcore.Identity] into the context.
//   - [RequireRole] gates a route on the authenticated role.
//
// [Guard] also attaches the caller's IP and User-Agent to the request
// context so the engine can enforce device binding.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create credentials directly (delegates to the Engine).
//   - Touch any store (the Engine handles I/O).
//   - Reveal which internal check rejected a request. Everything except
//     rate limiting and lockout collapses to a generic 401.
package middleware
