package ports

import (
	"context"

	"mpcal/domain/ranking"
)

// UnitSource loads experiment units for one data source
type UnitSource interface {
	// LoadSource reads every unit of a data source. A missing file returns
	// an error wrapping core.ErrDataNotFound.
	LoadSource(ctx context.Context, source string) (SourceData, error)
}

// SourceData is the decoded content of one data source file
type SourceData interface {
	// Unit returns the unit for a stem, or an error wrapping core.ErrUnitNotFound
	Unit(stem string) (*ranking.UnitData, error)
	Biomarkers() *ranking.BiomarkerIndex
}
