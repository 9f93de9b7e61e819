package questions

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Rotating spreads requests over several suppliers, starting at a different one each call and
// moving on when one fails.
type Rotating struct {
	suppliers []Supplier
	offset    atomic.Uint64
	logger    *zap.Logger
}

func NewRotating(logger *zap.Logger, suppliers ...Supplier) *Rotating {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotating{suppliers: suppliers, logger: logger}
}

func (r *Rotating) Name() string { return "rotating" }

func (r *Rotating) Supply(ctx context.Context, req Request) (*Problem, error) {
	if len(r.suppliers) == 0 {
		return nil, fmt.Errorf("%w: no suppliers configured", ErrSupplierUnavailable)
	}

	start := int(r.offset.Add(1)-1) % len(r.suppliers)

	var errs []error
	for i := range r.suppliers {
		s := r.suppliers[(start+i)%len(r.suppliers)]

		p, err := s.Supply(ctx, req)
		if err == nil {
			return p, nil
		}

		r.logger.Warn("question supplier failed", zap.String("supplier", s.Name()), zap.Error(err))
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrSupplierUnavailable, errors.Join(errs...))
}
