package bridge

import (
	"fmt"
	"time"

	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// Partition id layouts: the warehouse encodes daily partition ids as
// yyyyMMdd, the catalog expects yyyy-MM-dd values.
const (
	warehouseDayLayout = "20060102"
	catalogDayLayout   = "2006-01-02"
)

// ConvertPartitionIDs converts raw warehouse partition ids into catalog
// partition values. Only day partitioning has a catalog representation; for
// any other descriptor (including none) the result is empty, meaning
// partition enumeration is unsupported for the table, not that the table has
// zero partitions.
//
// A partition id that does not parse as yyyyMMdd signals corrupted warehouse
// state and fails the conversion.
func ConvertPartitionIDs(ids []string, tp *warehouse.TimePartitioning) ([]string, error) {
	if tp == nil || tp.Type != warehouse.PartitioningDay {
		return nil, nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		t, err := time.Parse(warehouseDayLayout, id)
		if err != nil {
			return nil, fmt.Errorf("parsing warehouse partition id %q: %w", id, err)
		}
		values = append(values, t.Format(catalogDayLayout))
	}
	return values, nil
}
