package events

const (
	TopicOrderPlaced = "order.placed"
	TopicStockLow    = "inventory.stock.low"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
