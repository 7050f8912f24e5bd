// Package metastore defines the catalog-side data model and the object store
// interface the bridge decorates. The types mirror what a Hive-style
// metastore hands back: tables with string parameter maps, partition key
// columns, and storage descriptors.
package metastore

// TableRef identifies a table within the catalog.
type TableRef struct {
	Catalog  string `json:"catalog"`
	Database string `json:"database"`
	Name     string `json:"name"`
}

// Key returns the "<database>.<name>" identity used to key job state.
func (r TableRef) Key() string {
	return r.Database + "." + r.Name
}

// Column describes a table or partition key column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SerDeInfo carries the serialization metadata of a storage descriptor.
type SerDeInfo struct {
	Name             string            `json:"name,omitempty"`
	SerializationLib string            `json:"serialization_lib,omitempty"`
	Parameters       map[string]string `json:"parameters,omitempty"`
}

// StorageDescriptor describes where and how a table or partition is stored.
type StorageDescriptor struct {
	Location     string    `json:"location"`
	InputFormat  string    `json:"input_format,omitempty"`
	OutputFormat string    `json:"output_format,omitempty"`
	SerDe        SerDeInfo `json:"serde,omitempty"`
}

// Table is a catalog table record.
type Table struct {
	Ref           TableRef          `json:"ref"`
	Parameters    map[string]string `json:"parameters"`
	PartitionKeys []Column          `json:"partition_keys"`
	Storage       StorageDescriptor `json:"storage"`
}

// Partition is a single catalog partition record. The bridge synthesizes
// these per query for linked tables; the default store reads them from
// durable catalog state.
type Partition struct {
	Ref        TableRef          `json:"ref"`
	Values     []string          `json:"values"`
	Parameters map[string]string `json:"parameters"`
	Storage    StorageDescriptor `json:"storage"`
}
