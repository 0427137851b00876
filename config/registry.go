package config

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
)

var (
	optionsLock sync.RWMutex
	options     = make(map[string]*Option)

	valuesLock sync.RWMutex
	userValues = make(map[string]interface{})

	// revision is bumped on every value change to invalidate getter caches.
	revision uint64

	// ErrInvalidOption is returned when an option fails its sanity checks.
	ErrInvalidOption = errors.New("invalid option")

	// ErrUnknownOption is returned when setting an unregistered key.
	ErrUnknownOption = errors.New("unknown config option")
)

// Register registers a configuration option. It must be called before the
// option is used, usually from an init() or prep function.
func Register(option *Option) error {
	if option.Name == "" {
		return fmt.Errorf("%w: name is missing", ErrInvalidOption)
	}
	if option.Key == "" {
		return fmt.Errorf("%w: key is missing", ErrInvalidOption)
	}
	if option.OptType == 0 {
		return fmt.Errorf("%w: type is missing", ErrInvalidOption)
	}

	if option.ValidationRegex != "" {
		var err error
		option.compiledRegex, err = regexp.Compile(option.ValidationRegex)
		if err != nil {
			return fmt.Errorf("%w: compiling validation regex failed: %s", ErrInvalidOption, err)
		}
	}

	optionsLock.Lock()
	defer optionsLock.Unlock()
	options[option.Key] = option
	return nil
}

func getOption(key string) (*Option, bool) {
	optionsLock.RLock()
	defer optionsLock.RUnlock()
	option, ok := options[key]
	return option, ok
}

func currentRevision() uint64 {
	return atomic.LoadUint64(&revision)
}

func bumpRevision() {
	atomic.AddUint64(&revision, 1)
}

// findValue returns the active value of the given key: the user value if
// set, else the registered default.
func findValue(key string) interface{} {
	option, ok := getOption(key)
	if !ok {
		return nil
	}

	valuesLock.RLock()
	value, ok := userValues[key]
	valuesLock.RUnlock()
	if ok {
		return value
	}
	return option.DefaultValue
}
