package accounts

const (
	TopicTicketEmitted  = "account.ticket.emitted"
	TopicItemsCommanded = "account.items.commanded"
)

// Partition key = account id, so every event of one account keeps its order.
func PartitionKey(accountID string) []byte { return []byte(accountID) }
