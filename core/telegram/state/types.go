package state

// Tracker records inbound texts per chat and recalls the most recent one.
type Tracker interface {
	// Record appends text to the chat history, creating it when absent.
	Record(chatID int64, text string)
	// LastCommand returns the latest recorded text; ok is false when the chat
	// has no history yet.
	LastCommand(chatID int64) (text string, ok bool)
}
