// Package bot runs the Telegram update loop.
//
// Button presses on review messages become decision.Engine votes, and
// admins' presses on abuse report messages suspend or ignore the report. Private
// chat commands let admins bind their Telegram account with a one-time token.
package bot
