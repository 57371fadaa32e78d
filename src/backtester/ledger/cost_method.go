package ledger

import "fmt"

type CostMethod string

const (
	FIFO            CostMethod = "fifo"
	LIFO            CostMethod = "lifo"
	WeightedAverage CostMethod = "weighted_average"
)

func (m CostMethod) Validate() error {
	switch m {
	case FIFO, LIFO, WeightedAverage:
		return nil
	default:
		return fmt.Errorf("unknown cost method %q", m)
	}
}
