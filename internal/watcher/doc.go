// Package watcher keeps the library current by requesting builds.
//
// Filesystem notifications for the books directory and every directory
// below it are debounced into a single build request once the tree has been
// quiet for the debounce period. Independently, a ticker requests a build at
// a fixed interval to catch changes notifications miss, such as those on
// network mounts. The library coalesces requests that arrive while a build
// runs.
package watcher
