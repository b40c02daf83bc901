package output

import (
	"context"

	"github.com/crimson-sun/repairclass/internal/model"
)

// Output defines the interface for prediction destinations.
type Output interface {
	Write(ctx context.Context, p model.Prediction) error
	Close() error
}

// BatchWriter is implemented by outputs that handle all predictions of one
// classification run as a unit.
type BatchWriter interface {
	WriteBatch(ctx context.Context, preds []model.Prediction) error
}

// WriteAll delivers preds to out, as one batch when out supports it. It
// returns how many predictions were delivered.
func WriteAll(ctx context.Context, out Output, preds []model.Prediction) (int, error) {
	if bw, ok := out.(BatchWriter); ok {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := bw.WriteBatch(ctx, preds); err != nil {
			return 0, err
		}
		return len(preds), nil
	}
	for i, p := range preds {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := out.Write(ctx, p); err != nil {
			return i, err
		}
	}
	return len(preds), nil
}
