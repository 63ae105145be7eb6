// Package fs abstracts the file operations behind table files and the local
// blob store, so tests can inject I/O failures.
//
// Production code uses [Default]; tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 16})
//
// Operations take no context. Local file calls are short and cannot be
// interrupted at the syscall level; remote stores live in blobstore.
package fs
