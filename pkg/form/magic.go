package form

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var bracketTag = regexp.MustCompile(`\{([A-Za-z0-9_]+)(?::([^}]*))?\}`)

// MagicFunc resolves a bracket magic tag such as {date:2006-01-02}. The arg is
// the text after the colon, empty when the tag has none.
type MagicFunc func(arg string, form Form, submission Submission) string

// Magic resolves bracket magic tags embedded in processor configuration.
// Unknown tags resolve to the empty string.
type Magic struct {
	mu   sync.RWMutex
	tags map[string]MagicFunc
	now  func() time.Time
}

// MagicOption customises a Magic resolver.
type MagicOption func(*Magic)

// WithClock overrides the clock used by the {date} tag.
func WithClock(now func() time.Time) MagicOption {
	return func(m *Magic) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMagic returns a resolver with the built-in tags registered.
func NewMagic(options ...MagicOption) *Magic {
	m := &Magic{
		tags: make(map[string]MagicFunc),
		now:  time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(m)
	}

	m.tags["date"] = func(arg string, _ Form, _ Submission) string {
		layout := strings.TrimSpace(arg)
		if layout == "" {
			layout = time.DateOnly
		}
		return m.now().Format(layout)
	}
	m.tags["ip"] = metaTag(MetaIP)
	m.tags["referer"] = metaTag(MetaReferer)
	m.tags["user_agent"] = metaTag(MetaUserAgent)
	m.tags["form_id"] = func(_ string, f Form, s Submission) string {
		if s.FormID != "" {
			return s.FormID
		}
		return f.ID
	}
	m.tags["process_id"] = func(_ string, _ Form, s Submission) string {
		return s.ProcessID
	}
	return m
}

func metaTag(key string) MagicFunc {
	return func(_ string, _ Form, s Submission) string {
		return s.Meta[key]
	}
}

// Register adds or replaces a tag resolver.
func (m *Magic) Register(name string, fn MagicFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return fmt.Errorf("form: magic tag name and func are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[name] = fn
	return nil
}

// Tags lists the registered tag names.
func (m *Magic) Tags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tags))
	for name := range m.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBracketMagic reports whether a configuration value contains a bracket tag.
func IsBracketMagic(value string) bool {
	return bracketTag.MatchString(value)
}

// Resolve replaces every bracket tag in value.
func (m *Magic) Resolve(value string, f Form, s Submission) string {
	return bracketTag.ReplaceAllStringFunc(value, func(match string) string {
		parts := bracketTag.FindStringSubmatch(match)
		m.mu.RLock()
		fn, ok := m.tags[parts[1]]
		m.mu.RUnlock()
		if !ok {
			return ""
		}
		return fn(parts[2], f, s)
	})
}
