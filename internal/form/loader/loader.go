package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formcrm/pkg/form"
)

// Loader implements form.Loader by delegating to file, fs.FS, or HTTP
// strategies. Definitions are YAML; JSON documents parse as YAML too.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
}

var _ form.Loader = (*Loader)(nil)

// New constructs a Loader from pre-resolved options.
func New(options form.LoaderOptions) *Loader {
	timeout := options.RequestTimeout

	var httpClient *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	case options.AllowHTTPFallback:
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Loader{
		fs:        options.FileSystem,
		http:      httpClient,
		allowHTTP: httpClient != nil,
		timeout:   timeout,
	}
}

// Load fetches a definition from the provided source and decodes it.
func (l *Loader) Load(ctx context.Context, src form.Source) (form.Form, error) {
	if src == nil {
		return form.Form{}, errors.New("form loader: source is nil")
	}

	var (
		data []byte
		err  error
	)

	switch src.Kind() {
	case form.SourceKindFile:
		data, err = loadFile(ctx, src.Location())
	case form.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location())
	case form.SourceKindURL:
		if !l.allowHTTP {
			return form.Form{}, errors.New("form loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		err = errors.New("form loader: unsupported source kind")
	}
	if err != nil {
		return form.Form{}, err
	}

	return Decode(data)
}

// Decode parses a single form definition and normalises it.
func Decode(data []byte) (form.Form, error) {
	var out form.Form
	if err := yaml.Unmarshal(data, &out); err != nil {
		return form.Form{}, fmt.Errorf("form loader: decode: %w", err)
	}
	out.Normalize()
	if err := out.Validate(); err != nil {
		return form.Form{}, err
	}
	return out, nil
}

// LoadDir reads every *.yaml, *.yml, and *.json file in dir into a catalog.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*form.Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("form loader: read dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	catalog := form.NewCatalog()
	for _, name := range names {
		f, err := l.Load(ctx, form.SourceFromFile(filepath.Join(dir, name)))
		if err != nil {
			return nil, fmt.Errorf("form loader: %s: %w", name, err)
		}
		if err := catalog.Add(f); err != nil {
			return nil, fmt.Errorf("form loader: %s: %w", name, err)
		}
	}
	return catalog, nil
}
