// Package website implements the CiviCRM Website processor. At submission time
// it creates, or updates, the website of the contact an earlier processor
// resolved for the same contact link. At render time it pre-populates the
// mapped fields from the contact's existing website of the configured type.
package website

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/fieldmap"
	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

// Key identifies the processor type in form definitions.
const Key = "civicrm_website"

// Config keys read by the processor itself rather than mapped to CRM fields.
const (
	ConfigContactLink   = "contact_link"
	ConfigWebsiteTypeID = "website_type_id"
)

// maxContactLinks bounds the contact link choices offered in the template.
const maxContactLinks = 10

// FieldsToIgnore are config keys never mapped to or from form fields.
var FieldsToIgnore = []string{ConfigContactLink, ConfigWebsiteTypeID}

// Option customises the processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor is the Website processor.
type Processor struct {
	store  transient.Store
	api    civicrm.API
	mapper *fieldmap.Mapper
	logger *zap.Logger
}

var _ processor.PreProcessor = (*Processor)(nil)

// New constructs the processor.
func New(store transient.Store, api civicrm.API, options ...Option) (*Processor, error) {
	if store == nil {
		return nil, errors.New("website: transient store is required")
	}
	if api == nil {
		return nil, errors.New("website: civicrm api is required")
	}
	p := &Processor{
		store:  store,
		api:    api,
		mapper: fieldmap.New(nil),
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(p)
	}
	return p, nil
}

// Register hooks the processor into the host's processors and render
// filters.
func (p *Processor) Register(h *processor.Host) error {
	if h == nil {
		return errors.New("website: host is nil")
	}
	if err := h.ProcessorFilters.Add(Key, processor.DefaultPriority, func(ctx context.Context, list []processor.Descriptor) ([]processor.Descriptor, error) {
		return append(list, p.Descriptor(ctx)), nil
	}); err != nil {
		return err
	}
	return h.RenderFilters.Add(Key, processor.DefaultPriority, func(ctx context.Context, rc processor.RenderContext) (processor.RenderContext, error) {
		rc.Form = p.PreRender(ctx, rc.Form, rc.SessionID)
		return rc, nil
	})
}

// Descriptor describes the processor and its configuration template.
func (p *Processor) Descriptor(ctx context.Context) processor.Descriptor {
	links := make([]form.Option, 0, maxContactLinks)
	for i := 1; i <= maxContactLinks; i++ {
		v := strconv.Itoa(i)
		links = append(links, form.Option{Value: v, Label: "Contact " + v})
	}

	var types []form.Option
	options, err := civicrm.WebsiteTypes(ctx, p.api)
	if err != nil {
		p.logger.Warn("website types unavailable", zap.Error(err))
	}
	for _, o := range options {
		types = append(types, form.Option{Value: o.Value, Label: o.Label})
	}

	return processor.Descriptor{
		Key:         Key,
		Name:        "CiviCRM Website",
		Description: "Add CiviCRM website to contacts",
		Author:      "Andrei Mondoc",
		Template: []processor.ConfigField{
			{Key: ConfigContactLink, Label: "Link to", Kind: processor.ConfigKindSelect, Required: true, Options: links},
			{Key: ConfigWebsiteTypeID, Label: "Website Type", Kind: processor.ConfigKindSelect, Required: true, Options: types},
			{Key: "url", Label: "Website", Kind: processor.ConfigKindFieldMap, Required: true},
		},
		PreProcessor: p,
	}
}

// PreProcess writes the submitted website to the CRM. Submissions without a
// resolved contact, or without any mapped value, are left alone. A failed
// create comes back as an error note.
func (p *Processor) PreProcess(ctx context.Context, cfg form.Processor, f form.Form, s form.Submission) (*processor.Note, error) {
	t, err := p.store.Get(ctx, s.SessionID)
	if err != nil {
		return nil, fmt.Errorf("website: load transient: %w", err)
	}

	contactID, ok := t.ContactID(cfg.Config[ConfigContactLink])
	if !ok {
		return nil, nil
	}

	existing := p.lookup(ctx, contactID, cfg.Config[ConfigWebsiteTypeID])

	values := p.mapper.ToProcessor(cfg.Config, f, s, FieldsToIgnore)
	if len(values) == 0 {
		return nil, nil
	}

	values["contact_id"] = contactID
	if websiteID, found := existing.Int64("id"); found {
		values["id"] = websiteID
	} else {
		values[ConfigWebsiteTypeID] = cfg.Config[ConfigWebsiteTypeID]
	}

	if _, err := civicrm.Create(ctx, p.api, civicrm.EntityWebsite, values); err != nil {
		p.logger.Warn("website create failed",
			zap.String("form", f.ID),
			zap.String("processor", cfg.ID),
			zap.Int64("contact_id", contactID),
			zap.Error(err),
		)
		return &processor.Note{Type: processor.NoteError, Message: errorNote(err)}, nil
	}
	return nil, nil
}

// PreRender fills the mapped fields of every website processor on the form
// from the contact's existing website. Lookups that fail, including "none
// found" and "more than one found", leave the form untouched.
func (p *Processor) PreRender(ctx context.Context, f form.Form, sessionID string) form.Form {
	if len(f.Processors) == 0 {
		return f
	}

	t, err := p.store.Get(ctx, sessionID)
	if err != nil {
		p.logger.Warn("website pre-render: load transient", zap.Error(err))
		return f
	}

	for _, id := range f.ProcessorIDs() {
		cfg := f.Processors[id]
		if cfg.Type != Key || !cfg.HasRuntimes() {
			continue
		}

		var website civicrm.Result
		if contactID, ok := t.ContactID(cfg.Config[ConfigContactLink]); ok {
			website = p.lookup(ctx, contactID, cfg.Config[ConfigWebsiteTypeID])
		}

		if website != nil && !website.Has("count") {
			f = p.mapper.ToPrerender(cfg.Config, f, FieldsToIgnore, website)
		}
	}
	return f
}

func (p *Processor) lookup(ctx context.Context, contactID int64, typeID string) civicrm.Result {
	website, err := civicrm.GetSingle(ctx, p.api, civicrm.EntityWebsite, civicrm.Params{
		"sequential":      1,
		"contact_id":      contactID,
		"website_type_id": typeID,
	})
	if err != nil {
		p.logger.Debug("website lookup",
			zap.Int64("contact_id", contactID),
			zap.String("website_type_id", typeID),
			zap.Bool("not_found", civicrm.IsNotFound(err)),
			zap.Error(err),
		)
		return nil
	}
	return website
}

func errorNote(err error) string {
	message := err.Error()
	detail := ""
	var apiErr *civicrm.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
		detail = apiErr.Detail()
	}
	if detail == "" {
		return html.EscapeString(message)
	}
	return html.EscapeString(message) + "<br><br><pre>" + html.EscapeString(detail) + "</pre>"
}
