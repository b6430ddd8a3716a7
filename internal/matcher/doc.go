// Package matcher links a respondent's contact details to the anonymous
// submission they made earlier.
//
// Candidates are the stored submissions whose two discriminator answers
// (interest and market obstacle) equal the contact's. Every candidate
// therefore scores at least 20; a matching business type adds 5. A single
// candidate is linked automatically, several are returned ranked for a
// human to pick from, and none leaves the store untouched.
package matcher
