// Package i18n translates engine messages.
//
// Messages are keyed by their English text, the same strings the field
// package uses as validation keys. Catalog ships German translations and
// accepts more with Set.
package i18n

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/syssam/quill/schema/field"
)

// Translator renders a message key in a language. Unknown languages and
// keys fall back to the English key.
type Translator interface {
	Translate(lang, key string, args ...any) string
}

// Catalog is a Translator backed by an x/text message catalog.
type Catalog struct {
	builder  *catalog.Builder
	mu       sync.RWMutex
	printers map[string]*message.Printer
}

var german = map[string]string{
	field.MsgRequired:     "Dieses Feld ist erforderlich",
	field.MsgDependency:   "Dieses Feld erfordert, dass `%s` gesetzt ist",
	field.MsgNotNull:      "Dieses Feld darf nicht null sein",
	field.MsgImmutable:    "Dieses Feld kann nicht geändert werden",
	field.MsgType:         "Muss vom Typ %s sein",
	field.MsgMinLen:       "Muss mindestens %d Zeichen lang sein",
	field.MsgMaxLen:       "Darf höchstens %d Zeichen lang sein",
	field.MsgMatch:        "Entspricht nicht dem erwarteten Format",
	field.MsgOneOf:        "Muss einer der folgenden Werte sein: %s",
	field.MsgUUID:         "Muss eine gültige UUID sein",
	field.MsgMin:          "Muss mindestens %v sein",
	field.MsgMax:          "Darf höchstens %v sein",
	field.MsgRange:        "Muss zwischen %v und %v liegen",
	field.MsgPositive:     "Muss positiv sein",
	field.MsgInteger:      "Muss eine ganze Zahl sein",
	field.MsgMinItems:     "Muss mindestens %d Elemente enthalten",
	field.MsgMaxItems:     "Darf höchstens %d Elemente enthalten",
	field.MsgUnexpected:   "Ein unerwarteter Fehler ist aufgetreten",
	field.MsgInvalidValue: "Ungültiger Wert",
}

// NewCatalog returns a catalog with the built-in translations.
func NewCatalog() *Catalog {
	c := &Catalog{
		builder:  catalog.NewBuilder(catalog.Fallback(language.English)),
		printers: make(map[string]*message.Printer),
	}
	for key, msg := range german {
		// SetString only fails for malformed tags.
		_ = c.builder.SetString(language.German, key, msg)
	}
	return c
}

// Set adds or replaces the translation of key in lang.
func (c *Catalog) Set(lang, key, msg string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	if err := c.builder.SetString(tag, key, msg); err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	c.mu.Lock()
	clear(c.printers)
	c.mu.Unlock()
	return nil
}

// Translate implements Translator.
func (c *Catalog) Translate(lang, key string, args ...any) string {
	return c.printer(lang).Sprintf(key, args...)
}

func (c *Catalog) printer(lang string) *message.Printer {
	c.mu.RLock()
	p, ok := c.printers[lang]
	c.mu.RUnlock()
	if ok {
		return p
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	supported := append([]language.Tag{language.English}, c.builder.Languages()...)
	_, i, _ := language.NewMatcher(supported).Match(tag)
	p = message.NewPrinter(supported[i], message.Catalog(c.builder))
	c.mu.Lock()
	c.printers[lang] = p
	c.mu.Unlock()
	return p
}

// Func adapts a function to a Translator.
type Func func(lang, key string, args ...any) string

// Translate implements Translator.
func (f Func) Translate(lang, key string, args ...any) string {
	return f(lang, key, args...)
}

// English renders keys with fmt, ignoring the language.
var English Translator = Func(func(_, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf(key, args...)
})
