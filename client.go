package quill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/quill/i18n"
	"github.com/syssam/quill/pipeline"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/conditional"
)

// DefaultLanguage is the language used when neither the client nor the
// builder sets one.
const DefaultLanguage = "en"

// Client creates query builders for the collections of a registry.
// It is safe for concurrent use; builders are not.
type Client struct {
	storage  Storage
	registry *schema.Registry
	config
	resolver func() (pipeline.Resolver, error)
	flight   singleflight.Group
}

// config holds the client options.
type config struct {
	logger     *slog.Logger
	cache      Cache
	ttl        time.Duration
	translator i18n.Translator
	filters    pipeline.Filters
	hooks      hooks
	language   string
	verbose    bool
	resolver   pipeline.Resolver
}

// Option configures a Client.
type Option func(*config)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithCache enables result caching of selects. Entries expire after
// ttl; zero keeps them until a mutation on the collection.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *config) {
		c.cache, c.ttl = cache, ttl
	}
}

// WithTranslator sets the translator of error messages.
func WithTranslator(t i18n.Translator) Option {
	return func(c *config) {
		c.translator = t
	}
}

// WithResolver replaces the conditional-logic resolver. The default
// evaluates field When expressions with CEL.
func WithResolver(r pipeline.Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithFilters sets the pipeline filters applied to every write.
func WithFilters(f pipeline.Filters) Option {
	return func(c *config) {
		c.filters = f
	}
}

// WithHook registers hooks at the given point. Hooks run in
// registration order.
func WithHook(p HookPoint, hs ...Hook) Option {
	return func(c *config) {
		if p < numHookPoints {
			c.hooks[p] = append(c.hooks[p], hs...)
		}
	}
}

// WithLanguage sets the default language of error messages.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithVerbose makes storage failures report the underlying error
// instead of a generic message.
func WithVerbose(v bool) Option {
	return func(c *config) {
		c.verbose = v
	}
}

// NewClient returns a client executing on storage.
//
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	client := quill.NewClient(drv, registry, quill.WithCache(cache.NewMemory(1024), time.Minute))
//	res := client.SelectFrom("Houses").OrderBy("points", true).All(ctx)
func NewClient(storage Storage, registry *schema.Registry, opts ...Option) *Client {
	c := &Client{
		storage:  storage,
		registry: registry,
		config: config{
			logger:     slog.Default(),
			translator: i18n.NewCatalog(),
			language:   DefaultLanguage,
		},
	}
	for _, opt := range opts {
		opt(&c.config)
	}
	if c.config.resolver != nil {
		r := c.config.resolver
		c.resolver = func() (pipeline.Resolver, error) { return r, nil }
	} else {
		c.resolver = sync.OnceValues(func() (pipeline.Resolver, error) {
			r, err := conditional.NewResolver()
			if err != nil {
				return nil, err
			}
			return r, nil
		})
	}
	return c
}

// Registry returns the collection registry.
func (c *Client) Registry() *schema.Registry {
	return c.registry
}

// Cache returns the configured cache, or nil.
func (c *Client) Cache() Cache {
	return c.cache
}

// Invalidate drops the cached results of the named collections.
func (c *Client) Invalidate(ctx context.Context, collections ...string) error {
	if c.cache == nil {
		return nil
	}
	var errs []error
	for _, name := range collections {
		errs = append(errs, c.cache.DeletePrefix(ctx, CachePrefix(name)))
	}
	return NewAggregateError(errs...)
}

// SelectFrom returns a select builder for collection.
func (c *Client) SelectFrom(collection string) *SelectBuilder {
	b := &SelectBuilder{}
	b.init(c, collection, b)
	return b
}

// InsertInto returns an insert builder for collection.
func (c *Client) InsertInto(collection string) *InsertBuilder {
	b := &InsertBuilder{}
	b.init(c, collection, b)
	return b
}

// Update returns an update builder for collection.
func (c *Client) Update(collection string) *UpdateBuilder {
	b := &UpdateBuilder{}
	b.init(c, collection, b)
	return b
}

// DeleteFrom returns a delete builder for collection.
func (c *Client) DeleteFrom(collection string) *DeleteBuilder {
	b := &DeleteBuilder{}
	b.init(c, collection, b)
	return b
}
