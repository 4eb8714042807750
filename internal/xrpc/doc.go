// Package xrpc adapts the indigo XRPC client to the crawl.
//
// # Endpoints
//
//   - com.atproto.server.createSession: password login
//   - com.atproto.server.refreshSession: renew an expired access token
//   - com.atproto.identity.resolveHandle: handle to DID
//   - app.bsky.graph.getFollows: one page of an actor's follows
//   - app.bsky.actor.getProfile: profile attributes of an actor
//
// The requests are built and decoded by the generated lexicon functions in
// github.com/bluesky-social/indigo/api. Client converts their outputs into
// model types so the crawler and the enrichment pipeline never see lexicon
// structs.
//
// # Transport
//
// Every request goes through the *http.Client given with WithHTTPClient,
// usually the Tor SOCKS5 client. Its transport is wrapped to wait on the
// rate limiter and record the request metrics before indigo sees it.
//
// # Errors
//
// Non-2xx responses become *Error carrying the HTTP status and the XRPC error
// name. Rate limiting (429) and server errors (5xx) are transient; every
// other status is permanent. A 200 response that cannot be decoded becomes
// *DecodeError, which is permanent. Network errors keep their cause and are
// left to the caller to classify.
//
// Design decision: Client holds the session itself instead of sharing one
// indigo client because:
//  1. Each call builds its own indigo client, so concurrent callers never
//     race on AuthInfo
//  2. An expired token is renewed once through a singleflight group no
//     matter how many callers saw it expire
//  3. The session survives restarts through the session file
package xrpc
