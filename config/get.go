package config

type (
	// StringOption defines the returned function by GetAsString.
	StringOption func() string
	// StringArrayOption defines the returned function by GetAsStringArray.
	StringArrayOption func() []string
	// IntOption defines the returned function by GetAsInt.
	IntOption func() int64
	// BoolOption defines the returned function by GetAsBool.
	BoolOption func() bool
)

// GetAsString returns a function that returns the wanted string with high performance.
func GetAsString(key string, fallback string) StringOption {
	valid := currentRevision()
	value := findStringValue(key, fallback)
	return func() string {
		if valid != currentRevision() {
			valid = currentRevision()
			value = findStringValue(key, fallback)
		}
		return value
	}
}

// GetAsStringArray returns a function that returns the wanted string array with high performance.
func GetAsStringArray(key string, fallback []string) StringArrayOption {
	valid := currentRevision()
	value := findStringArrayValue(key, fallback)
	return func() []string {
		if valid != currentRevision() {
			valid = currentRevision()
			value = findStringArrayValue(key, fallback)
		}
		return value
	}
}

// GetAsInt returns a function that returns the wanted int with high performance.
func GetAsInt(key string, fallback int64) IntOption {
	valid := currentRevision()
	value := findIntValue(key, fallback)
	return func() int64 {
		if valid != currentRevision() {
			valid = currentRevision()
			value = findIntValue(key, fallback)
		}
		return value
	}
}

// GetAsBool returns a function that returns the wanted bool with high performance.
func GetAsBool(key string, fallback bool) BoolOption {
	valid := currentRevision()
	value := findBoolValue(key, fallback)
	return func() bool {
		if valid != currentRevision() {
			valid = currentRevision()
			value = findBoolValue(key, fallback)
		}
		return value
	}
}

func findStringValue(key string, fallback string) string {
	result := findValue(key)
	if result == nil {
		return fallback
	}
	if v, ok := result.(string); ok {
		return v
	}
	return fallback
}

func findStringArrayValue(key string, fallback []string) []string {
	result := findValue(key)
	if result == nil {
		return fallback
	}
	switch v := result.(type) {
	case []string:
		return v
	case []interface{}:
		converted := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return fallback
			}
			converted = append(converted, s)
		}
		return converted
	}
	return fallback
}

func findIntValue(key string, fallback int64) int64 {
	result := findValue(key)
	if result == nil {
		return fallback
	}
	switch v := result.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		// yaml/json numbers decode as float64
		return int64(v)
	}
	return fallback
}

func findBoolValue(key string, fallback bool) bool {
	result := findValue(key)
	if result == nil {
		return fallback
	}
	if v, ok := result.(bool); ok {
		return v
	}
	return fallback
}
