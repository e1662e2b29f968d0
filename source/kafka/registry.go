package kafka

import (
	"fmt"
	"sort"
)

// Factory builds a Driver (e.g., SaramaDriver, KgoDriver).
type Factory func() Driver

var registry = map[string]Factory{}

// Register is called from each driver's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// NewDriver returns a driver by name ("sarama", "kgo").
func NewDriver(name string) (Driver, error) {
	if f, ok := registry[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("kafka: unsupported driver %q", name)
}

// Drivers lists the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
