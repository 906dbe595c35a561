// Package connector opens TCP and TLS connections for the HTTP transport,
// tunneling HTTPS through an HTTP CONNECT proxy when a proxy rule matches.
//
// A Connector picks one of three modes per destination:
//
//   - Direct: no proxy matches. TCP, plus TLS for https destinations.
//   - HTTPViaProxy: plain HTTP destination with a matching proxy. The
//     connection goes to the proxy, which receives the absolute-URI request.
//   - HTTPSViaProxy: HTTPS destination with a matching proxy. A CONNECT
//     tunnel is opened through the proxy and TLS is negotiated over it with
//     the destination's hostname.
//
// Proxy rules and TLS settings are computed once in New and shared
// read-only by every connection and every Clone.
package connector
