package sensor

import (
	"context"

	"field-controller/internal/model"
)

// Source is one sensor collaborator. Read returns the current value in the
// source's natural unit; rain sources report 1 for rain and 0 for dry.
type Source interface {
	Name() string
	Kind() model.SensorKind
	Read(ctx context.Context) (float64, error)
}
