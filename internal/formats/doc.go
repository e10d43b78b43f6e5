// Package formats extracts book metadata and cover images from book files.
//
// A [Collection] dispatches on file extension to a [Plugin]. The built-in
// plugins cover FictionBook 2 (.fb2) and EPUB (.epub). Files no plugin
// understands yield [ErrUnsupported]; the library treats that like any other
// resolution failure and leaves the file out of the catalog.
package formats
