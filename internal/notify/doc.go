// Package notify delivers messages to people.
//
// Telegram posts and edits the shared review message in the admins' group
// chat and exposes the few Bot API calls the update loop needs. SMTPMailer
// sends requester email; LogMailer and NopChannel stand in when a transport
// is not configured. Emails builds the requester-facing subject and body for
// each lifecycle event.
package notify
