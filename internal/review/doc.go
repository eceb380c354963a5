// Package review renders the shared review messages for applications and
// abuse reports.
//
// A review message is either Active (pending, carries approve and deny
// actions) or Terminal (resolved, annotated with the outcome and reason, no
// actions). Render is pure: the same application and votes always produce
// the same message, so the notification channel never needs optional fields.
// Abuse reports render as Report, which keeps its actions while the report is
// open.
//
// The package also owns the callback data codec shared by the message
// actions and the bot that receives them.
package review
