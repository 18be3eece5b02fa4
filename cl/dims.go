package cl

import (
	"strconv"

	"github.com/panicz/clops/errors"
)

// Dims is an NDRange extent of rank 1 to 3.
type Dims []int

// MaxDims is the highest supported NDRange rank.
const MaxDims = 3

func (d Dims) check(name string) error {
	if len(d) < 1 || len(d) > MaxDims {
		return errors.Precondition(errors.PhaseEnqueue, []string{"enqueue-kernel", name},
			"rank %d outside 1..%d", len(d), MaxDims)
	}
	for i, n := range d {
		if n <= 0 {
			return errors.Precondition(errors.PhaseEnqueue, []string{"enqueue-kernel", name, strconv.Itoa(i)},
				"extent %d must be positive", n)
		}
	}
	return nil
}

// checkLaunch validates a global extent and an optional local extent of
// the same rank. Every local size must be at most, and evenly divide, the
// corresponding global size.
func checkLaunch(global, local Dims) error {
	if err := global.check("global"); err != nil {
		return err
	}
	if local == nil {
		return nil
	}
	if err := local.check("local"); err != nil {
		return err
	}
	if len(local) != len(global) {
		return errors.Precondition(errors.PhaseEnqueue, []string{"enqueue-kernel", "local"},
			"rank %d does not match global rank %d", len(local), len(global))
	}
	for i := range local {
		if local[i] > global[i] {
			return errors.Precondition(errors.PhaseEnqueue, []string{"enqueue-kernel", "local", strconv.Itoa(i)},
				"local size %d exceeds global size %d", local[i], global[i])
		}
		if global[i]%local[i] != 0 {
			return errors.Precondition(errors.PhaseEnqueue, []string{"enqueue-kernel", "local", strconv.Itoa(i)},
				"local size %d does not divide global size %d", local[i], global[i])
		}
	}
	return nil
}
