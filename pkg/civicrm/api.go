// Package civicrm talks to a remote CiviCRM installation through its API v3
// entity/action interface. Every call is a single (entity, action, params)
// triple; results come back as loosely typed JSON objects, so Result offers
// typed accessors for the handful of keys processors care about.
package civicrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Common API v3 actions.
const (
	ActionGet        = "get"
	ActionGetSingle  = "getsingle"
	ActionCreate     = "create"
	ActionGetOptions = "getoptions"
)

// EntityWebsite names the Website entity.
const EntityWebsite = "Website"

// API executes API v3 calls.
type API interface {
	Call(ctx context.Context, entity, action string, params Params) (Result, error)
}

// Params are the call parameters, sent as the JSON payload.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Result is a decoded API response.
type Result map[string]any

// Has reports whether key is present.
func (r Result) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value at key formatted as a string.
func (r Result) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Int64 returns the value at key as an integer. CiviCRM encodes IDs as
// strings or numbers depending on the endpoint.
func (r Result) Int64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return toInt64(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// APIError is returned when CiviCRM answers with is_error=1.
type APIError struct {
	Entity  string
	Action  string
	Message string
	Code    string
	Extra   map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("civicrm: %s.%s: %s", e.Entity, e.Action, e.Message)
}

// Detail renders the error code and extra payload for diagnostics.
func (e *APIError) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entity: %s\naction: %s\n", e.Entity, e.Action)
	if e.Code != "" {
		fmt.Fprintf(&b, "error_code: %s\n", e.Code)
	}
	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, e.Extra[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsNotFound reports whether err is a getsingle miss (zero or several
// matches).
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.HasPrefix(apiErr.Message, "Expected one ")
}

// GetSingle fetches exactly one record. Zero or multiple matches are errors.
func GetSingle(ctx context.Context, api API, entity string, params Params) (Result, error) {
	if api == nil {
		return nil, errors.New("civicrm: api is nil")
	}
	return api.Call(ctx, entity, ActionGetSingle, params)
}

// Create creates a record, or updates it when params carry an id.
func Create(ctx context.Context, api API, entity string, params Params) (Result, error) {
	if api == nil {
		return nil, errors.New("civicrm: api is nil")
	}
	return api.Call(ctx, entity, ActionCreate, params)
}

// TypeOption is a single option value returned by getoptions.
type TypeOption struct {
	Value string
	Label string
}

// WebsiteTypes lists the website type options configured in the CRM, sorted
// by value.
func WebsiteTypes(ctx context.Context, api API) ([]TypeOption, error) {
	if api == nil {
		return nil, errors.New("civicrm: api is nil")
	}
	res, err := api.Call(ctx, EntityWebsite, ActionGetOptions, Params{
		"field":   "website_type_id",
		"context": "create",
	})
	if err != nil {
		return nil, err
	}
	values, ok := res["values"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("civicrm: %s.%s: values missing", EntityWebsite, ActionGetOptions)
	}
	out := make([]TypeOption, 0, len(values))
	for value, label := range values {
		out = append(out, TypeOption{Value: value, Label: stringify(label)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, aErr := strconv.Atoi(out[i].Value)
		b, bErr := strconv.Atoi(out[j].Value)
		if aErr == nil && bErr == nil {
			return a < b
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}
