// Package auth issues and validates the bearer tokens that protect the
// proxy's admin API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. They carry a
// subject, a role (viewer or admin) and a random JTI. Validation is by
// signature and expiry only; the proxy keeps no session state.
//
// Tokens are issued out of band:
//
//	greenhome-proxy --config /etc/greenhome/config.yaml --issue-token ops
package auth
