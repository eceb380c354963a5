// Package submission is the entry point for end-user requests.
//
// It validates and normalizes a requested record, stores a pending
// application with its voting deadline, posts the initial review message and
// confirms receipt by email. Deleting an owned record needs no vote and is
// applied immediately.
package submission
