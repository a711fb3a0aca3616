// Package file stores sheetdex settings in a TOML file.
//
// The file lives at $SHEETDEX_HOME/config.toml (default ~/.sheetdex/config.toml).
// Tables map to dotted keys: [embedding] model = "x" is read as
// "embedding.model". Environment variables of the form
// SHEETDEX_<SECTION>__<KEY> override file values for the life of the process.
package file
