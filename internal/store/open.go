package store

import (
	"context"
	"fmt"
)

// Open returns the store for driver: "memory", "sqlite" (source is a file path) or
// "postgres" (source is a connection string).
func Open(ctx context.Context, driver, source string) (Store, error) {
	switch driver {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite":
		s, err := OpenSQLite(source)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		p, err := NewPostgres(ctx, source)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
