package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Wire names of submission metadata. Answer fields may not use these.
const (
	KeyID             = "id"
	KeySurveyID       = "surveyId"
	KeySubmittedAt    = "submittedAt"
	KeyCompletionTime = "completionTime"
	KeyFullName       = "fullName"
	KeyCompanyName    = "companyName"
	KeyEmail          = "email"
	KeyPhone          = "phone"
	KeyHasContactInfo = "hasContactInfo"
	KeyLinkedAt       = "linkedAt"
)

var reservedKeys = map[string]bool{
	KeyID:             true,
	KeySurveyID:       true,
	KeySubmittedAt:    true,
	KeyCompletionTime: true,
	KeyFullName:       true,
	KeyCompanyName:    true,
	KeyEmail:          true,
	KeyPhone:          true,
	KeyHasContactInfo: true,
	KeyLinkedAt:       true,
}

// IsReserved reports whether name is a submission metadata key.
func IsReserved(name string) bool {
	return reservedKeys[name]
}

// Identity is the contact information linked to a submission after matching.
type Identity struct {
	FullName    string
	CompanyName string
	Email       string
	Phone       string
}

// Submission is one respondent's finalized answers.
//
// Answers is written once at insert. Only the Identity fields,
// HasContactInfo and LinkedAt change afterwards, when the matcher links a
// contact.
type Submission struct {
	ID       string
	SurveyID string
	Answers  Answers

	// SubmittedAt is assigned by the store. The zero value means the
	// timestamp is missing.
	SubmittedAt time.Time

	// CompletionTime is the wizard duration in milliseconds, if recorded.
	CompletionTime *int64

	Identity
	HasContactInfo bool
	LinkedAt       *time.Time
}

// MarshalJSON writes the flat persisted document: answer fields alongside
// the metadata keys.
func (s Submission) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Answers)+len(reservedKeys))
	for k, v := range s.Answers {
		doc[k] = v
	}
	doc[KeyID] = s.ID
	doc[KeySurveyID] = s.SurveyID
	if !s.SubmittedAt.IsZero() {
		doc[KeySubmittedAt] = s.SubmittedAt.UTC().Format(time.RFC3339Nano)
	}
	if s.CompletionTime != nil {
		doc[KeyCompletionTime] = *s.CompletionTime
	}
	doc[KeyHasContactInfo] = s.HasContactInfo
	if s.HasContactInfo {
		doc[KeyFullName] = s.FullName
		doc[KeyCompanyName] = s.CompanyName
		doc[KeyEmail] = s.Email
		doc[KeyPhone] = s.Phone
	}
	if s.LinkedAt != nil {
		doc[KeyLinkedAt] = s.LinkedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flat document written by MarshalJSON.
// Malformed timestamps decode as the zero time.
func (s *Submission) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode submission: %w", err)
	}

	*s = Submission{Answers: AnswersFromDocument(doc)}
	s.ID, _ = doc[KeyID].(string)
	s.SurveyID, _ = doc[KeySurveyID].(string)
	if ts, ok := doc[KeySubmittedAt].(string); ok {
		s.SubmittedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if n, ok := doc[KeyCompletionTime].(json.Number); ok {
		if ms, err := n.Int64(); err == nil {
			s.CompletionTime = &ms
		}
	}
	s.FullName, _ = doc[KeyFullName].(string)
	s.CompanyName, _ = doc[KeyCompanyName].(string)
	s.Email, _ = doc[KeyEmail].(string)
	s.Phone, _ = doc[KeyPhone].(string)
	s.HasContactInfo, _ = doc[KeyHasContactInfo].(bool)
	if ts, ok := doc[KeyLinkedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			s.LinkedAt = &t
		}
	}
	return nil
}
