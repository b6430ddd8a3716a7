// Package harness runs end-to-end questionnaire scenarios.
//
// A scenario drives wizard sessions and contact matching against a fresh
// in-memory store, then asserts on the stored records, the activity event
// log and the computed dashboard.
//
// # Scenario Format
//
//	name: single_match_links
//	description: "A contact with one matching submission is linked"
//	survey: ../surveys          # optional, CUE directory; built-in if empty
//	survey_name: pilot          # optional when the directory has one survey
//	seed:
//	  - survey_id: seeded-1
//	    answers: { interest: "yes", market_obstacle: "connections" }
//	flow:
//	  - op: start
//	    session: a
//	  - op: set
//	    session: a
//	    answers: { interest: "yes" }
//	  - op: advance
//	    session: a
//	    expect: { step: 1, moved: true }
//	  - op: match
//	    contact: { fullName: "Ama", email: "ama@example.com", interest: "yes", marketObstacle: "connections" }
//	    expect: { outcome: linked }
//	assertions:
//	  - type: event_order
//	    kinds: [survey_started, step_completed, contact_linked]
//	  - type: submission
//	    survey_id: seeded-1
//	    expect: { hasContactInfo: true }
//	  - type: dashboard
//	    expect: { total: 1, withContact: 1, activity.started: 1 }
//
// Operations are start, set, advance, retreat, submit, abandon, match, link
// and wait (advances the fake clock). Domain errors such as a conflicting
// link are results, checked with expect.error; any other error aborts the
// run.
//
// # Deterministic Testing
//
// Every run starts its fake clock at Epoch and draws survey and submission
// ids from sequences ("survey-0001", "sub-0001"), so traces are
// byte-identical across runs and can be compared with golden files.
package harness
