package history

import "fmt"

// BlockRange is an inclusive range of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// Batches splits r into consecutive ranges of at most size blocks.
func (r BlockRange) Batches(size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if r.To < r.From {
		return nil, fmt.Errorf("to block %d is before from block %d", r.To, r.From)
	}

	out := make([]BlockRange, 0, (r.Len()+size-1)/size)
	for start := r.From; ; {
		end := r.To
		if r.To-start >= size {
			end = start + size - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == r.To {
			return out, nil
		}
		start = end + 1
	}
}
