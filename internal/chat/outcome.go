package chat

// Outcome is the resolution of one exchange
type Outcome struct {
	// Reply is the text appended as the assistant message
	Reply string
	// Fallback is set when the endpoint succeeded without any reply text
	Fallback bool
	// Err holds the diagnostic cause of a failed exchange. It is never shown
	// to the user.
	Err error
}

// Failed reports whether the exchange ended on the failure path
func (o Outcome) Failed() bool {
	return o.Err != nil
}
