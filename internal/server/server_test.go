package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/orchestrator"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/processor/website"
	"github.com/goliatone/go-formcrm/pkg/testsupport"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

type fixture struct {
	server *httptest.Server
	crm    *civicrm.Memory
	store  *transient.MemoryStore
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()

	crm := civicrm.NewMemory()
	store := transient.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	host := processor.NewHost()
	p, err := website.New(store, crm)
	if err != nil {
		t.Fatalf("website processor: %v", err)
	}
	if err := p.Register(host); err != nil {
		t.Fatalf("register: %v", err)
	}

	catalog := form.NewCatalog()
	if err := catalog.Add(testsupport.WebsiteForm(website.Key)); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	gen := orchestrator.New(
		orchestrator.WithCatalog(catalog),
		orchestrator.WithHost(host),
		orchestrator.WithStore(store),
	)
	srv, err := New(gen, append([]Option{WithContactSeeding(true)}, options...)...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &fixture{server: ts, crm: crm, store: store}
}

func (f *fixture) seed(t *testing.T, session, link, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/sessions/"+session+"/contacts/"+link, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

func get(t *testing.T, client *http.Client, target string, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func post(t *testing.T, target string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(target, values)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := get(t, http.DefaultClient, f.server.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected healthz %d %q", resp.StatusCode, body)
	}
}

func TestRenderMintsSessionCookie(t *testing.T) {
	f := newFixture(t)

	resp, body := get(t, http.DefaultClient, f.server.URL+"/forms/"+testsupport.WebsiteFormID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	var session string
	for _, c := range resp.Cookies() {
		if c.Name == defaultCookieName {
			session = c.Value
		}
	}
	if session == "" {
		t.Fatalf("expected session cookie")
	}
	if !strings.Contains(body, `name="_session" value="`+session+`"`) {
		t.Fatalf("expected hidden session input\n%s", body)
	}
}

func TestRenderUnknownForm(t *testing.T) {
	f := newFixture(t)
	resp, _ := get(t, http.DefaultClient, f.server.URL+"/forms/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRenderPrefillsFromCRM(t *testing.T) {
	f := newFixture(t)
	f.crm.Seed(42, "https://existing.example.org", "2")

	if resp := f.seed(t, "sess-1", "1", `{"contact_id": 42}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("seed status %d", resp.StatusCode)
	}

	_, body := get(t, http.DefaultClient, f.server.URL+"/forms/"+testsupport.WebsiteFormID,
		&http.Cookie{Name: defaultCookieName, Value: "sess-1"})
	if !strings.Contains(body, `value="https://existing.example.org"`) {
		t.Fatalf("expected prefilled website\n%s", body)
	}
}

func TestSubmitCreatesWebsite(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "sess-2", "1", `{"contact_id": 7}`)

	resp, body := post(t, f.server.URL+"/forms/"+testsupport.WebsiteFormID, url.Values{
		"_session":                 {"sess-2"},
		testsupport.WebsiteFieldID: {"https://new.example.org"},
		"not_a_field":              {"ignored"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d\n%s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "formcrm-note--success") {
		t.Fatalf("expected success note\n%s", body)
	}

	want := []civicrm.Result{{
		"id":              "1",
		"contact_id":      "7",
		"url":             "https://new.example.org",
		"website_type_id": "2",
	}}
	if diff := cmp.Diff(want, f.crm.Websites()); diff != "" {
		t.Fatalf("websites mismatch (-want +got):\n%s", diff)
	}
	// the accepted submission re-renders pre-populated from the CRM
	if !strings.Contains(body, `value="https://new.example.org"`) {
		t.Fatalf("expected re-rendered form to carry the stored website\n%s", body)
	}
}

func TestSubmitMissingRequiredField(t *testing.T) {
	f := newFixture(t)

	resp, body := post(t, f.server.URL+"/forms/"+testsupport.WebsiteFormID, url.Values{
		"_session": {"sess-3"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Website is required") {
		t.Fatalf("expected required error\n%s", body)
	}
	if len(f.crm.Calls()) != 0 {
		t.Fatalf("expected no CRM calls, got %+v", f.crm.Calls())
	}
}

func TestSubmitCreateFailureShowsErrorNote(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "sess-4", "1", `{"contact_id": 7}`)
	f.crm.Fail(civicrm.EntityWebsite, civicrm.ActionCreate, "url is not valid")

	resp, body := post(t, f.server.URL+"/forms/"+testsupport.WebsiteFormID, url.Values{
		"_session":                 {"sess-4"},
		testsupport.WebsiteFieldID: {"nope"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "formcrm-note--error") || !strings.Contains(body, "url is not valid") {
		t.Fatalf("expected error note\n%s", body)
	}
	if !strings.Contains(body, `value="nope"`) {
		t.Fatalf("expected submitted value to be kept\n%s", body)
	}
}

func TestSeedContactValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]struct {
		link string
		body string
		want int
	}{
		"non numeric link": {link: "x", body: `{"contact_id": 1}`, want: http.StatusBadRequest},
		"bad json":         {link: "1", body: `{`, want: http.StatusBadRequest},
		"zero contact":     {link: "1", body: `{"contact_id": 0}`, want: http.StatusBadRequest},
		"ok":               {link: "2", body: `{"contact_id": 9}`, want: http.StatusNoContent},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if resp := f.seed(t, "sess-5", tc.link, tc.body); resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}

	tr, err := f.store.Get(context.Background(), "sess-5")
	if err != nil {
		t.Fatalf("get transient: %v", err)
	}
	if id, ok := tr.ContactID("2"); !ok || id != 9 {
		t.Fatalf("expected contact 9 on link 2, got %d %v", id, ok)
	}
}

func TestSeedContactRouteDisabledByDefault(t *testing.T) {
	f := newFixture(t, WithContactSeeding(false))
	f.crm.Seed(42, "https://private.example.org", "2")

	resp := f.seed(t, "visitor", "1", `{"contact_id": 42}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	tr, err := f.store.Get(context.Background(), "visitor")
	if err != nil {
		t.Fatalf("get transient: %v", err)
	}
	if _, ok := tr.ContactID("1"); ok {
		t.Fatalf("contact was bound to the session")
	}

	_, body := get(t, http.DefaultClient, f.server.URL+"/forms/"+testsupport.WebsiteFormID,
		&http.Cookie{Name: defaultCookieName, Value: "visitor"})
	if strings.Contains(body, "private.example.org") {
		t.Fatalf("website of an unrelated contact leaked\n%s", body)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/forms/x", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}
