package domain

// Exchange is the metadata recorded for one chat request. It never carries
// prompt or reply text.
type Exchange struct {
	PK            string
	SK            string
	CorrelationID string
	Model         string
	Status        int
	Reason        string
	PromptChars   int
	ReplyChars    int
	HistoryTurns  int
	LatencyMillis int64
	TTL           int64
}
