package civicrm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Call records a single request served by Memory.
type Call struct {
	Entity string
	Action string
	Params Params
}

// Memory is an in-process stand-in for a CiviCRM site. It serves the Website
// entity with API v3 semantics and records every call.
type Memory struct {
	mu           sync.Mutex
	nextID       int64
	websites     map[int64]Result
	websiteTypes map[string]string
	failures     map[string]string
	calls        []Call
}

var _ API = (*Memory)(nil)

// NewMemory returns an empty CRM with a default set of website types.
func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		websites: make(map[int64]Result),
		websiteTypes: map[string]string{
			"1": "Home",
			"2": "Work",
			"3": "Facebook",
			"4": "Instagram",
			"5": "LinkedIn",
			"6": "Twitter",
		},
		failures: make(map[string]string),
	}
}

// Fail makes every subsequent entity.action call fail with message. An empty
// message clears the failure.
func (m *Memory) Fail(entity, action, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entity + "." + action
	if message == "" {
		delete(m.failures, key)
		return
	}
	m.failures[key] = message
}

// Calls returns the calls served so far.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Websites returns stored websites sorted by id.
func (m *Memory) Websites() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.sortedIDs()
	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneResult(m.websites[id]))
	}
	return out
}

// Call dispatches an API v3 request.
func (m *Memory) Call(ctx context.Context, entity, action string, params Params) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Entity: entity, Action: action, Params: params.Clone()})

	if msg, ok := m.failures[entity+"."+action]; ok {
		return nil, &APIError{Entity: entity, Action: action, Message: msg}
	}
	if entity != EntityWebsite {
		return nil, &APIError{Entity: entity, Action: action, Message: fmt.Sprintf("API (%s, %s) does not exist (join the API team and implement it!)", entity, action)}
	}

	switch action {
	case ActionGet:
		matches := m.match(params)
		values := make([]any, 0, len(matches))
		for _, r := range matches {
			values = append(values, map[string]any(r))
		}
		return Result{"is_error": 0, "version": 3, "count": len(matches), "values": values}, nil
	case ActionGetSingle:
		matches := m.match(params)
		if len(matches) != 1 {
			return nil, &APIError{
				Entity:  entity,
				Action:  action,
				Message: fmt.Sprintf("Expected one %s but found %d", entity, len(matches)),
				Extra:   map[string]any{"count": len(matches)},
			}
		}
		return matches[0], nil
	case ActionCreate:
		return m.create(entity, action, params)
	case ActionGetOptions:
		values := make(map[string]any, len(m.websiteTypes))
		for k, v := range m.websiteTypes {
			values[k] = v
		}
		return Result{"is_error": 0, "count": len(values), "values": values}, nil
	default:
		return nil, &APIError{Entity: entity, Action: action, Message: fmt.Sprintf("API (%s, %s) does not exist (join the API team and implement it!)", entity, action)}
	}
}

func (m *Memory) create(entity, action string, params Params) (Result, error) {
	var record Result
	if raw, ok := params["id"]; ok {
		id, ok := toInt64(raw)
		if !ok {
			return nil, &APIError{Entity: entity, Action: action, Message: "id is not a valid integer"}
		}
		existing, found := m.websites[id]
		if !found {
			return nil, &APIError{Entity: entity, Action: action, Message: fmt.Sprintf("Unable to find %s with id %d", entity, id)}
		}
		record = cloneResult(existing)
	} else {
		if _, ok := params["contact_id"]; !ok {
			return nil, &APIError{Entity: entity, Action: action, Message: "Mandatory key(s) missing from params array: contact_id", Code: "mandatory_missing"}
		}
		record = Result{"id": strconv.FormatInt(m.nextID, 10)}
		m.nextID++
	}
	for k, v := range params {
		switch k {
		case "id", "sequential":
			continue
		}
		record[k] = stringify(v)
	}
	id, _ := record.Int64("id")
	m.websites[id] = record
	return Result{
		"is_error": 0,
		"version":  3,
		"count":    1,
		"id":       id,
		"values":   []any{map[string]any(cloneResult(record))},
	}, nil
}

// Seed stores a website record directly and returns its id.
func (m *Memory) Seed(contactID int64, url, typeID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.websites[id] = Result{
		"id":              strconv.FormatInt(id, 10),
		"contact_id":      strconv.FormatInt(contactID, 10),
		"url":             url,
		"website_type_id": typeID,
	}
	return id
}

func (m *Memory) match(params Params) []Result {
	var out []Result
	for _, id := range m.sortedIDs() {
		record := m.websites[id]
		if matches(record, params) {
			out = append(out, cloneResult(record))
		}
	}
	return out
}

func matches(record Result, params Params) bool {
	for k, v := range params {
		switch k {
		case "sequential", "options", "return":
			continue
		}
		if record.String(k) != stringify(v) {
			return false
		}
	}
	return true
}

func (m *Memory) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.websites))
	for id := range m.websites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func cloneResult(r Result) Result {
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
