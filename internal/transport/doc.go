// Package transport builds the HTTP clients domainmap crawls with.
//
// A Client either dials hosts directly or routes every connection through a
// SOCKS5 proxy. Proxied clients are how .onion sites are crawled: point the
// client at a running Tor SOCKS port, or let EmbeddedTor start one.
//
// Per-site cookies and headers from the config file are injected by a
// RoundTripper so redirects carry them too.
package transport
