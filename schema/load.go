package schema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/syssam/quill/schema/field"
)

// File is the YAML layout read by LoadYAML.
//
//	collections:
//	  - name: Spells
//	    fields:
//	      - name: name
//	        type: string
//	        required: true
//	        rules: [trim, notEmpty, maxLen=40]
//	      - name: type
//	        type: enum
//	        values: [charm, curse, jinx]
type File struct {
	Collections []CollectionDef `yaml:"collections"`
}

// CollectionDef describes one collection.
type CollectionDef struct {
	Name   string     `yaml:"name"`
	Table  string     `yaml:"table,omitempty"`
	Fields []FieldDef `yaml:"fields"`
}

// FieldDef describes one field. Type is a field data type name, "uuid"
// or "enum".
type FieldDef struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Required  bool     `yaml:"required,omitempty"`
	Nullable  bool     `yaml:"nullable,omitempty"`
	Immutable bool     `yaml:"immutable,omitempty"`
	Default   any      `yaml:"default,omitempty"`
	DependsOn []string `yaml:"dependsOn,omitempty"`
	When      string   `yaml:"when,omitempty"`
	Values    []string `yaml:"values,omitempty"`
	Rules     []string `yaml:"rules,omitempty"`
}

// ParseYAML decodes collections from YAML.
func ParseYAML(data []byte) ([]*Collection, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schema: decoding yaml: %w", err)
	}
	collections := make([]*Collection, 0, len(f.Collections))
	for _, cd := range f.Collections {
		c := NewCollection(cd.Name).Table(cd.Table)
		for _, fd := range cd.Fields {
			d, err := fd.descriptor()
			if err != nil {
				return nil, fmt.Errorf("schema: collection %q: %w", cd.Name, err)
			}
			c.add(d)
		}
		if err := c.Err(); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}

// LoadYAML reads collections from the YAML file at path.
func LoadYAML(path string) ([]*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return ParseYAML(data)
}

func (fd FieldDef) descriptor() (*field.Descriptor, error) {
	d := &field.Descriptor{
		Name:         fd.Name,
		Required:     fd.Required,
		Nullable:     fd.Nullable,
		Immutable:    fd.Immutable,
		Default:      fd.Default,
		Dependencies: fd.DependsOn,
		Conditional:  fd.When,
	}
	switch fd.Type {
	case "uuid":
		d.Type = field.TypeString
		d.Sanitizers = append(d.Sanitizers, field.NormalizeUUID)
		d.Validators = append(d.Validators, field.IsUUID)
	case "enum":
		if len(fd.Values) == 0 {
			return nil, fmt.Errorf("field %q: enum without values", fd.Name)
		}
		d.Type = field.TypeString
		d.Validators = append(d.Validators, field.OneOf(fd.Values...))
	default:
		t, err := field.ParseType(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		d.Type = t
	}
	for _, rule := range fd.Rules {
		if err := applyRule(d, rule); err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
	}
	return d, nil
}

// applyRule adds the sanitizer or validator named by rule, written as
// name or name=argument.
func applyRule(d *field.Descriptor, rule string) error {
	name, arg, _ := strings.Cut(rule, "=")
	num := func() (float64, error) {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, fmt.Errorf("rule %q: %q is not a number", name, arg)
		}
		return f, nil
	}
	switch name {
	case "trim":
		d.Sanitizers = append(d.Sanitizers, field.Trim)
	case "lower":
		d.Sanitizers = append(d.Sanitizers, field.Lower)
	case "notEmpty":
		d.Validators = append(d.Validators, field.MinLen(1))
	case "positive":
		d.Validators = append(d.Validators, field.Positive)
	case "integer":
		d.Validators = append(d.Validators, field.Integer)
	case "uuid":
		d.Validators = append(d.Validators, field.IsUUID)
	case "match":
		re, err := regexp.Compile(arg)
		if err != nil {
			return fmt.Errorf("rule %q: %w", name, err)
		}
		d.Validators = append(d.Validators, field.Match(re))
	case "minLen", "maxLen", "minItems", "maxItems":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("rule %q: %q is not an integer", name, arg)
		}
		v := map[string]func(int) field.Validator{
			"minLen":   field.MinLen,
			"maxLen":   field.MaxLen,
			"minItems": field.MinItems,
			"maxItems": field.MaxItems,
		}[name](n)
		d.Validators = append(d.Validators, v)
	case "min", "max":
		f, err := num()
		if err != nil {
			return err
		}
		if name == "min" {
			d.Validators = append(d.Validators, field.Min(f))
		} else {
			d.Validators = append(d.Validators, field.Max(f))
		}
	default:
		return fmt.Errorf("unknown rule %q", name)
	}
	return nil
}

// Watch reloads the registry from the YAML file at path whenever it
// changes, until ctx is done. Reload failures are logged and leave the
// registry untouched.
func (r *Registry) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema: creating watcher: %w", err)
	}
	// Editors often replace files, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("schema: watching %s: %w", path, err)
	}
	go r.watchLoop(ctx, watcher, filepath.Clean(path), logger)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, logger *slog.Logger) {
	defer func() { _ = watcher.Close() }()
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(50*time.Millisecond, func() {
				collections, err := LoadYAML(path)
				if err == nil {
					err = r.Replace(collections...)
				}
				if err != nil {
					logger.ErrorContext(ctx, "schema reload failed", "path", path, "error", err)
					return
				}
				logger.InfoContext(ctx, "schema reloaded", "path", path, "collections", len(collections))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WarnContext(ctx, "schema watcher error", "error", err)
		}
	}
}
