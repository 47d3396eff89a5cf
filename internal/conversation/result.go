package conversation

// FetchStatus classifies the outcome of a conditional history read.
type FetchStatus int

const (
	// FetchEmpty means the conversation never had any message activity.
	// No version tag accompanies it.
	FetchEmpty FetchStatus = iota

	// FetchNotModified means the caller's tag matches the current history;
	// only the tag is carried, no payload.
	FetchNotModified

	// FetchFull carries the complete message sequence and its current tag.
	FetchFull
)

// HistoryResult is the outcome of GetMessages. The round-trip contract:
// fetching with the tag from a Full result yields NotModified until the
// next mutation; fetching with no tag or a stale tag yields Full again.
type HistoryResult struct {
	Status   FetchStatus
	Messages []Message
	ETag     string
}

// EmptyHistory is the result for conversations with no message activity.
func EmptyHistory() HistoryResult {
	return HistoryResult{Status: FetchEmpty}
}

// NotModified is the result when the caller's tag is current.
func NotModified(etag string) HistoryResult {
	return HistoryResult{Status: FetchNotModified, ETag: etag}
}

// FullHistory carries the message sequence and its tag.
func FullHistory(messages []Message, etag string) HistoryResult {
	return HistoryResult{Status: FetchFull, Messages: messages, ETag: etag}
}
