package driven

// ConfigStore is the flat key/value view of sheetdex settings.
// Keys are "section.key" paths such as "embedding.model" or "query.top_k".
// The typed getters coerce stored values the way the config/coerce package
// does: numeric strings parse, ints widen to floats, and a missing or
// unconvertible value yields the zero value.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetStringSlice accepts lists and comma-separated strings.
	GetStringSlice(key string) []string

	// Set stores value and persists it.
	Set(key string, value any) error

	// Save writes the current values to the backing file, if any.
	Save() error

	// Load rereads the backing file, discarding unsaved changes.
	Load() error

	// Path identifies the backing file. In-memory stores return ":memory:".
	Path() string
}
