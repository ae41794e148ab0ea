package orders

const (
	TopicInvoiceRequested = "sales.invoice.requested"
)

// PartitionKey keeps every job for one sales order on the same partition.
func PartitionKey(id string) []byte { return []byte(id) }
