// Package schema defines collections and the registry the query engines
// resolve them from.
//
// A collection is an ordered list of fields built with the [field]
// package, optionally extended with [mixin] fields:
//
//	spells := schema.NewCollection("Spells",
//	    field.String("name").Required().Trim(),
//	    field.Enum("type", "charm", "curse", "jinx").Required(),
//	    field.Number("difficulty").Required().Range(1, 10),
//	).Mixin(mixin.Time{})
//
//	registry, err := schema.NewRegistry(spells)
//
// The table name defaults to the underscored collection name ("Spells"
// becomes "spells") and can be set with Table.
//
// Collections can also be declared in YAML and loaded with LoadYAML.
// Watch keeps a registry in sync with such a file.
package schema
