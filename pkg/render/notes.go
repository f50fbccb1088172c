package render

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formcrm/pkg/processor"
)

var (
	notePolicyOnce sync.Once
	notePolicy     *bluemonday.Policy
)

// SanitizeNote strips everything from a note message except line breaks,
// preformatted blocks, and basic emphasis. Processor notes can embed CRM error
// text, which is not trusted markup.
func SanitizeNote(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(noteSanitizer().Sanitize(trimmed))
}

// SanitizeNotes returns notes with sanitized messages; empty messages are
// dropped.
func SanitizeNotes(notes []processor.Note) []processor.Note {
	if len(notes) == 0 {
		return nil
	}
	out := make([]processor.Note, 0, len(notes))
	for _, note := range notes {
		message := SanitizeNote(note.Message)
		if message == "" {
			continue
		}
		kind := note.Type
		switch kind {
		case processor.NoteError, processor.NoteSuccess, processor.NoteWarning, processor.NoteInfo:
		default:
			kind = processor.NoteInfo
		}
		out = append(out, processor.Note{Type: kind, Message: message})
	}
	return out
}

func noteSanitizer() *bluemonday.Policy {
	notePolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("br", "pre", "code", "strong", "em", "p")
		notePolicy = policy
	})
	return notePolicy
}
