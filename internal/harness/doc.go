// Package harness runs scripted end-to-end scenarios against the decision
// engine, the submission service and abuse report handling.
//
// Each scenario gets a fresh SQLite database, an in-memory DNS provider that
// records its calls, a recording review channel and mailer, and a fake clock
// starting at testutil.Epoch. Steps run in order; every step and every side
// effect it causes is appended to a trace that assertions and golden files
// are checked against.
//
// # Scenario Format
//
//	name: fast_track_approval
//	description: "Two approvals apply the record before the deadline"
//	config:
//	  quorum: 2
//	  window: 12h
//	users:
//	  - { username: alice }
//	  - { username: carol, role: admin, chat_id: "100" }
//	flow:
//	  - invoke: submit
//	    args: { user: alice, name: blog, type: A, value: 203.0.113.7 }
//	    expect: { case: Success, result: { id: 1 } }
//	  - invoke: vote
//	    args: { voter: "100", application: 1, kind: approve }
//	    expect: { case: Recorded }
//	assertions:
//	  - type: trace_contains
//	    action: dns.create
//	    args: { name: blog.example.org }
//	  - type: final_state
//	    table: applications
//	    where: { id: 1 }
//	    expect: { status: approved }
//
// # Steps
//
//   - submit: user, name, type, value, purpose
//   - submit_update: user, record, name, type, value, purpose
//   - delete_record: user, record
//   - vote: voter, application, kind, message
//   - resolve: application, outcome, reason
//   - sweep
//   - advance: duration
//   - fail_dns: op, message
//   - heal_dns: op
//   - report_abuse: name, reason, details
//   - suspend_report: report
//   - ignore_report: report
//
// # Effects
//
// Side effects are traced as dns.create, dns.update, dns.delete, review.post,
// review.edit and mail.send.
//
// # Assertion Types
//
//   - trace_contains: a step or effect with matching args (subset match)
//   - trace_order: steps or effects appear in this order
//   - trace_count: a step or effect appears exactly N times
//   - final_state: one row of a table matches the expected columns
package harness
