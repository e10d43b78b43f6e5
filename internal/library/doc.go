// Package library is the catalog engine.
//
// A [Library] keeps the in-memory book set and its categorized [tree.Node]
// index consistent with the books directory and the catalog database.
// Reconciliation runs in the background through [Library.StartBuild]:
//
//   - prime: books present at the previous build are installed from the
//     catalog, with the favorites and recent lists, before any disk access
//   - verify: each primed book is checked against its file; missing files
//     become orphans and changed files are re-read
//   - discover: the books directory is walked breadth first; unchanged
//     orphans are resurrected without reading, new files are read and
//     archives are descended into
//   - help: the help document for the configured locale is added
//   - commit: new and resurrected books are saved in one transaction and
//     the content identities are flushed
//
// At most one build runs at a time. Searches run in the background too; a
// new search supersedes the running one. Progress is published as [Event]
// values to every subscriber, and [Library.Wait] blocks until the library
// is idle.
package library
