// Package conv provides checked integer conversions for sizes read from or
// written to table streams.
//
// Use it where a value crosses a width or sign boundary and nothing else
// bounds it. Loop indices and sizes bounded by construction use plain casts.
package conv
