// Package survey defines the questionnaire data model shared by the wizard,
// matcher, dashboard and store packages.
//
// The persisted shape of a Submission is a flat document: answer fields sit
// next to the metadata fields submittedAt, completionTime, fullName,
// companyName, email, phone and hasContactInfo. Field names are part of the
// wire contract and must not be renamed.
//
// # Answer values
//
// An answer is one of three concrete types:
//   - Text: free text or the selected option of a single-choice question
//   - Rating: an integer 1-5
//   - Selection: a set of option strings from a multi-select question
//
// Selection never contains duplicates or empty strings; build one with
// CleanSelection or Union.
package survey
