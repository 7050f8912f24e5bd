package bridge

import (
	"fmt"
	"strings"

	"github.com/datalinkhq/bqbridge/pkg/filter"
	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// PartitionsQuery builds the INFORMATION_SCHEMA.PARTITIONS lookup for a
// warehouse table. The exact string shape is part of the contract with the
// warehouse side; tests assert on it literally.
func PartitionsQuery(id warehouse.TableID, node filter.Node, maxParts int) string {
	var q strings.Builder
	fmt.Fprintf(&q, "SELECT partition_id FROM `%s.%s.INFORMATION_SCHEMA.PARTITIONS` WHERE table_name = '%s'",
		id.Project, id.Dataset, id.Table)
	if node != nil {
		q.WriteString(" AND ")
		q.WriteString(node.ExprString())
	}
	if maxParts > 0 {
		fmt.Fprintf(&q, " LIMIT %d", maxParts)
	}
	return q.String()
}
