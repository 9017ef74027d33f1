// Package server provides HTTP routing, middleware, the JSON REST API and OAuth handling for playdeck.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added with Use runs in the order it was added; the first one is outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and registers method-qualified patterns,
// so a path served for GET answers other methods with 405.
//
// # REST API
//
// [API] mounts the library, catalog, settings and Spotify routes under /api. Handlers answer JSON and
// failures use the {"error": "..."} shape; sentinel errors from the shared package map to statuses
// (invalid input 400, not found 404, auth 401, upstream 502, everything else 500).
//
// Spotify routes resolve a client per request from a bearer token, the accessToken header, or the
// token stored for the X-User-ID header. Refreshed tokens are written back to the [services.TokenStore].
//
// [CORS] wraps the whole router so preflight requests are answered before routing.
// [Serve] runs an [http.Server] until its context ends and then shuts down gracefully.
//
// # CLI Authorization
//
// [OAuthHandler] answers GET /callback for `playdeck spotify auth`. It checks the state token, exchanges
// the code and reports one [OAuthResult]; any later callback is refused.
//
// [Handler] lets a type carry its own route patterns so [BasicRouter.Handler] can mount it in one call.
package server
