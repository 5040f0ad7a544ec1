package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/quill/schema/field"
)

// Field is implemented by every field builder.
type Field interface {
	Descriptor() *field.Descriptor
}

// Mixin is a reusable set of fields.
type Mixin interface {
	Fields() []Field
}

// Collection is a named, ordered set of fields backed by a table.
type Collection struct {
	Name string
	// TableName overrides the default table name.
	TableName string
	fields    []*field.Descriptor
	index     map[string]int
	err       error
}

// NewCollection returns a collection with the given fields. Mixin fields
// added later are appended after them.
func NewCollection(name string, fields ...Field) *Collection {
	c := &Collection{Name: name, index: make(map[string]int)}
	if name == "" {
		c.err = errors.New("schema: missing collection name")
	}
	return c.Fields(fields...)
}

// Fields appends fields to the collection.
func (c *Collection) Fields(fields ...Field) *Collection {
	for _, f := range fields {
		c.add(f.Descriptor())
	}
	return c
}

// Mixin appends the fields of each mixin.
func (c *Collection) Mixin(mixins ...Mixin) *Collection {
	for _, m := range mixins {
		c.Fields(m.Fields()...)
	}
	return c
}

// Table sets the table name.
func (c *Collection) Table(name string) *Collection {
	c.TableName = name
	return c
}

func (c *Collection) add(d *field.Descriptor) {
	switch {
	case d.Err != nil:
		c.fail(fmt.Errorf("schema: collection %q: %w", c.Name, d.Err))
	case d.Type == field.TypeInvalid:
		c.fail(fmt.Errorf("schema: collection %q: field %q has no type", c.Name, d.Name))
	default:
		if _, ok := c.index[d.Name]; ok {
			c.fail(fmt.Errorf("schema: collection %q: duplicate field %q", c.Name, d.Name))
			return
		}
		c.index[d.Name] = len(c.fields)
		c.fields = append(c.fields, d)
	}
}

func (c *Collection) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first error raised while building the collection.
func (c *Collection) Err() error {
	return c.err
}

// TableIdent returns TableName when set, otherwise the underscored
// collection name.
func (c *Collection) TableIdent() string {
	if c.TableName != "" {
		return c.TableName
	}
	return inflect.Underscore(c.Name)
}

// Field returns the named field.
func (c *Collection) Field(name string) (*field.Descriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.fields[i], true
}

// Descriptors returns the fields in declaration order.
func (c *Collection) Descriptors() []*field.Descriptor {
	return slices.Clone(c.fields)
}

// Columns returns the field names in declaration order.
func (c *Collection) Columns() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Registry holds collections by name. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	order       []string
}

// NewRegistry returns a registry holding the given collections.
func NewRegistry(collections ...*Collection) (*Registry, error) {
	r := &Registry{collections: make(map[string]*Collection)}
	if err := r.Register(collections...); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(collections ...*Collection) *Registry {
	r, err := NewRegistry(collections...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds collections. It fails without modifying the registry if
// any collection is invalid or already registered.
func (r *Registry) Register(collections ...*Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(collections))
	for _, c := range collections {
		if err := c.Err(); err != nil {
			return err
		}
		if _, ok := r.collections[c.Name]; ok || seen[c.Name] {
			return fmt.Errorf("schema: collection %q already registered", c.Name)
		}
		seen[c.Name] = true
	}
	for _, c := range collections {
		r.collections[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return nil
}

// Replace swaps the registry content for collections.
func (r *Registry) Replace(collections ...*Collection) error {
	next, err := NewRegistry(collections...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections, r.order = next.collections, next.order
	return nil
}

// Collection returns the named collection.
func (r *Registry) Collection(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// Names returns the collection names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
