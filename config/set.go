package config

import (
	"fmt"
)

// SetConfigOption sets a value for the given key. The value must pass the
// option's type and validation checks.
func SetConfigOption(key string, value interface{}) error {
	option, ok := getOption(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}

	if err := validateValue(option, value); err != nil {
		return err
	}

	valuesLock.Lock()
	userValues[key] = value
	valuesLock.Unlock()

	bumpRevision()
	return nil
}

// ResetConfigOption removes the user value of the given key, restoring the
// registered default.
func ResetConfigOption(key string) error {
	_, ok := getOption(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}

	valuesLock.Lock()
	delete(userValues, key)
	valuesLock.Unlock()

	bumpRevision()
	return nil
}

func validateValue(option *Option, value interface{}) error {
	switch v := value.(type) {
	case string:
		if option.OptType != OptTypeString {
			return typeMismatch(option, value)
		}
		if option.compiledRegex != nil && !option.compiledRegex.MatchString(v) {
			return fmt.Errorf("%w: value %q for %s failed validation", ErrInvalidOption, v, option.Key)
		}
	case []string:
		if option.OptType != OptTypeStringArray {
			return typeMismatch(option, value)
		}
		for _, entry := range v {
			if option.compiledRegex != nil && !option.compiledRegex.MatchString(entry) {
				return fmt.Errorf("%w: value %q for %s failed validation", ErrInvalidOption, entry, option.Key)
			}
		}
	case []interface{}:
		if option.OptType != OptTypeStringArray {
			return typeMismatch(option, value)
		}
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return typeMismatch(option, value)
			}
			if option.compiledRegex != nil && !option.compiledRegex.MatchString(s) {
				return fmt.Errorf("%w: value %q for %s failed validation", ErrInvalidOption, s, option.Key)
			}
		}
	case int, int32, int64, float64:
		if option.OptType != OptTypeInt {
			return typeMismatch(option, value)
		}
		if option.compiledRegex != nil && !option.compiledRegex.MatchString(fmt.Sprintf("%v", v)) {
			return fmt.Errorf("%w: value %v for %s failed validation", ErrInvalidOption, v, option.Key)
		}
	case bool:
		if option.OptType != OptTypeBool {
			return typeMismatch(option, value)
		}
	default:
		return fmt.Errorf("%w: unsupported value type %T for %s", ErrInvalidOption, value, option.Key)
	}
	return nil
}

func typeMismatch(option *Option, value interface{}) error {
	return fmt.Errorf(
		"%w: expected %s value for %s, got %T",
		ErrInvalidOption, getTypeName(option.OptType), option.Key, value,
	)
}
