// Package export writes the contents of a table to formats other tools can
// read: a JSON document of every cell, or a SQLite database with one SQL
// table per schema.
//
// # Usage
//
//	doc, err := export.Build(ctx, tbl)
//	err = export.JSON(ctx, os.Stdout, tbl, export.WithCodec(codec.GoJSON{}))
//	err = export.SQLite(ctx, "weapons.db", tbl)
//
// Both exports contain the authored and the inherited data of every cell.
// The source of an inherited cell is recorded next to it.
package export
