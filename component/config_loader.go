package component

// ConfigLoader configuration reader handed to components
//
// Components read their own section through it instead of depending on a global config struct.
type ConfigLoader interface {
	// Get raw value of a key such as "quota.store_type"
	Get(key string) interface{}

	// Unmarshal decodes a whole section into v
	//
	// Example:
	//   var cfg quota.Config
	//   if err := loader.Unmarshal("quota", &cfg); err != nil {
	//       return err
	//   }
	Unmarshal(key string, v interface{}) error

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// IsSet reports whether the key is present in any source
	IsSet(key string) bool
}
