package errx

// Advisor-persona sentences. No error path shows raw error text to the user.
const (
	ReplyRetry       = "I'm sorry, I couldn't complete that just now. Could you please try again in a moment?"
	ReplyClarify     = "I'm sorry, I couldn't quite use that. Could you please check the details and share them again?"
	ReplyCorrupted   = "I'm having trouble picking up our previous conversation. If you type 'reset', we can start fresh together."
	ReplyUnavailable = "I'm sorry, I'm unable to continue our conversation right now. Please try again shortly."
)

// UserMessage returns the advisor-persona sentence for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return ReplyClarify
	case KindStateCorruption:
		return ReplyCorrupted
	case KindTransport:
		return ReplyRetry
	default:
		return ReplyUnavailable
	}
}
