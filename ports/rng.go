package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates an independent stream for one experiment unit so that
	// separately launched processes never share random state
	Stream(ctx context.Context, unitStem string, baseSeed int64) (*rand.Rand, error)
}
