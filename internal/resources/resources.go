// Package resources embeds the documents shipped with the library.
package resources

import "embed"

// FS holds the built-in help documents under help/.
//
//go:embed help/*.fb2
var FS embed.FS

// HelpPattern is the name template of the help document; the placeholder is
// a locale such as "de" or "pt_BR".
const HelpPattern = "help/MiniHelp.%s.fb2"

// DefaultHelpLocale is used when no document matches the configured locale.
const DefaultHelpLocale = "en"
