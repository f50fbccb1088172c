package formcrm

import (
	"context"

	internalLoader "github.com/goliatone/go-formcrm/internal/form/loader"
	"github.com/goliatone/go-formcrm/pkg/form"
)

// NewLoader constructs a form definition loader using the internal
// implementation while keeping the concrete type hidden from consumers.
func NewLoader(options ...form.LoaderOption) form.Loader {
	return internalLoader.New(form.NewLoaderOptions(options...))
}

// LoadForms reads every definition in dir into a catalog.
func LoadForms(ctx context.Context, dir string, options ...form.LoaderOption) (*form.Catalog, error) {
	return internalLoader.New(form.NewLoaderOptions(options...)).LoadDir(ctx, dir)
}
