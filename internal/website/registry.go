package website

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/validation"
)

// Config is the static description of a website.
type Config struct {
	Name            string
	DisplayName     string
	BaseURL         string
	Rules           validation.Rules
	RefreshInterval time.Duration
	Markup          markup.Chain
	// NewOptions returns a pointer to the site's zero options value.
	NewOptions func() any
	// RetrySignatures extend the global transient allow-list for this site only.
	RetrySignatures []string
}

// DecodeOptions decodes raw into a fresh options value. Unknown fields are
// rejected.
func (c Config) DecodeOptions(raw json.RawMessage) (any, error) {
	opts := c.NewOptions()
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return opts, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("invalid %s options: %w", c.Name, err)
	}
	return opts, nil
}

type Entry struct {
	Config  Config
	Adapter Adapter
}

// Registry is built once at startup and read-only afterwards.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry panics on duplicate names and incomplete entries.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		name := e.Config.Name
		switch {
		case name == "":
			panic("website registry: entry without a name")
		case e.Adapter == nil:
			panic(fmt.Sprintf("website registry: %s has no adapter", name))
		case e.Adapter.Name() != name:
			panic(fmt.Sprintf("website registry: adapter %s registered as %s", e.Adapter.Name(), name))
		case e.Config.NewOptions == nil:
			panic(fmt.Sprintf("website registry: %s has no options constructor", name))
		case len(e.Config.Markup.Parsers) == 0:
			panic(fmt.Sprintf("website registry: %s has no markup parsers", name))
		}
		if _, dup := r.entries[name]; dup {
			panic(fmt.Sprintf("website registry: duplicate website %s", name))
		}
		if e.Config.DisplayName == "" {
			e.Config.DisplayName = name
		}
		r.entries[name] = e
		r.order = append(r.order, name)
	}
	return r
}

func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Adapter(name string) (Adapter, bool) {
	e, ok := r.entries[name]
	return e.Adapter, ok
}

func (r *Registry) Config(name string) (Config, bool) {
	e, ok := r.entries[name]
	return e.Config, ok
}

// Names lists websites in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}
