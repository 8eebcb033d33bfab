// Package signature authenticates inbound webhook requests with a
// timestamped HMAC scheme. The sender signs "{timestamp}.{body}" with
// a shared secret and ships the result in a single header:
//
//	Signature: t=1700000000,v1=5257a869e7...
//
// Verification recomputes the digest with the receiver's copy of the
// secret, compares in constant time, and rejects timestamps outside
// the configured skew window so captured requests cannot be replayed
// later.
package signature
