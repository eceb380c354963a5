// Package model holds the entity types shared by every other internal package.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Status only leaves StatusPending once (see Status.IsTerminal)
//   - Timestamps are time.Time in UTC; the store persists them as unix millis
//   - All JSON tags use snake_case
package model
