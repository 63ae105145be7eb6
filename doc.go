// Package affinity stores fixed-layout records at the intersection of two
// hierarchical tag taxonomies.
//
// A Table indexes row tags and column tags (for example "Weapon.Sword" and
// "World.Impact.Water") and keeps one page of records per registered schema.
// Lookups resolve either by exact tag or by walking up to the closest indexed
// ancestor, so a handful of authored cells can answer queries for a whole
// taxonomy.
//
// Cells may inherit their data from an ancestor cell. Inheritance is resolved
// at edit time by an Editor, which copies the source record into every
// inheriting cell; queries never walk the inheritance graph.
//
// Quick start:
//
//	damage := schema.MustStruct("Damage",
//	    schema.FieldSpec{Name: "Kind", Kind: schema.KindString, Len: 16},
//	)
//	tbl, _ := affinity.New(affinity.WithSchemas(damage))
//	defer tbl.Close()
//
//	tbl.AddRow("Weapon.Sword")
//	tbl.AddColumn("World.Impact")
//
//	ed := affinity.NewEditor(tbl)
//	_ = ed.SetCell("Damage", inherit.Cell("Weapon", "World"), "Kind", "Slash")
//
//	recs, ok := tbl.Query("Weapon.Sword.Long", "World.Impact.Water", false, "Damage")
//
// Tables are not safe for concurrent use. Callers that share a table across
// goroutines must serialize access themselves.
package affinity
