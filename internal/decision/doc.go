// Package decision implements the application decision engine.
//
// Two independent triggers decide a pending application:
//   - CastVote records an admin's vote and fast-tracks once either side
//     reaches the quorum
//   - Sweep resolves every application whose voting deadline has passed,
//     by strict majority (ties reject, no votes expire)
//
// Both end in Resolve, the only code path that takes an application out of
// pending. Resolve claims the application with a compare-and-set in the
// store; of any number of racing callers exactly one wins, and the others get
// ErrAlreadyResolved and do nothing. The winner then materializes the DNS
// change (approvals only), emails the requester and turns the review message
// into its terminal form.
//
// A failed DNS change never reopens voting. The claimed approval is
// compensated into the error status, the requester gets a failure email and
// the review message says so.
//
// The engine keeps no application state between calls; every decision is
// derived from the store.
package decision
