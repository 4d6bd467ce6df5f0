// Package clientip extracts the originating client IP address from HTTP
// requests, taking common proxy and CDN headers into account.
//
// The risk scoring and security event recording in this module key off a
// canonical client IP; this package provides the single place where that
// address is derived.
//
// Usage:
//
//	ip := clientip.GetIP(r)
//
// Values from proxy headers are validated and normalized before use, so a
// spoofed or malformed header never yields a garbage address.
package clientip
