// Package api serves the HTTP interface for submissions, abuse reports and
// read-side listing.
//
// Routes under /api require "Authorization: Bearer <http.api_token>".
// /health is open. The /api/abuse-reports routes exist only when the server
// is built with Options.Reports.
package api
