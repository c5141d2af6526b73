package planner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Stmt is one self-contained, already-compiled statement: SQL text plus its
// bound parameter vector. The parent statement and every WhereInSegment
// compile down to one of these.
type Stmt struct {
	SQL    string
	Params []interface{}
}

// RunBatch is the orchestration helper that is the one
// piece of "execution is out of scope" the compiler still owns: given the
// parent statement and its segment statements plus a caller-supplied
// executor, it fans the segment executions out over an errgroup.Group
// alongside the parent and returns once all complete or one fails. It never
// opens a connection itself — exec is the caller's driver call. Grounded on
// golang.org/x/sync/errgroup, attested across the example pack for exactly
// this parallel-fan-out-then-join shape.
func RunBatch[T any](ctx context.Context, parent Stmt, segments []Stmt, exec func(context.Context, Stmt) ([]T, error)) (parentRows []T, segmentRows [][]T, err error) {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		rows, err := exec(egCtx, parent)
		if err != nil {
			return err
		}
		parentRows = rows
		return nil
	})

	segmentRows = make([][]T, len(segments))
	for i, seg := range segments {
		i, seg := i, seg
		eg.Go(func() error {
			rows, err := exec(egCtx, seg)
			if err != nil {
				return err
			}
			segmentRows[i] = rows
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return parentRows, segmentRows, nil
}
