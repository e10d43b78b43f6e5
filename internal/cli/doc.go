// Package cli implements the booklib command line.
//
// The root command loads configuration from the environment and an optional
// .env file (see package startup) and offers:
//
//	serve       run the HTTP API, the watcher and the metrics endpoint
//	scan        build the library once and print statistics
//	search      find books whose title, authors, tags or file name match
//	tree        print a node of the index tree as text, JSON or YAML
//	recent      list recently opened books, or mark a book as opened
//	favorites   list, add or remove favorites
//	remove      take a book out of the library, optionally deleting its file
//	db          show catalog status or vacuum the database
//	version     print build information
//
// Books are named on the command line either by catalog id or by file path.
package cli
