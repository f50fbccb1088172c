package form

// Submission meta keys populated by the host when a form is posted.
const (
	MetaIP        = "ip"
	MetaReferer   = "referer"
	MetaUserAgent = "user_agent"
)

// Submission is the data a pre-processor receives for a single form post.
// Values are keyed by field ID. SessionID identifies the transient object that
// earlier processors populated for this visitor.
type Submission struct {
	FormID    string
	ProcessID string
	SessionID string
	Values    map[string]any
	Meta      map[string]string
}

// FieldValue returns the submitted value for a field ID.
func (s Submission) FieldValue(fieldID string) (any, bool) {
	if s.Values == nil {
		return nil, false
	}
	value, ok := s.Values[fieldID]
	return value, ok
}
