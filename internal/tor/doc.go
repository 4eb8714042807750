// Package tor routes XRPC traffic through a Tor SOCKS5 proxy.
//
// Two modes are supported: an existing proxy given as host:port
// (--tor-proxy), or an embedded Tor daemon started with tornago (--tor).
// Either way the result is a Client whose HTTP client is handed to the
// xrpc package, so every request of a crawl leaves through the same proxy.
//
// Design decision: The proxy is verified with a raw SOCKS5 handshake against
// the service host before any credentials are sent. A misconfigured proxy
// therefore fails the run up front instead of leaking the login over a
// direct connection.
package tor
