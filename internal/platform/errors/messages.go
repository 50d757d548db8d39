package errors

var userMessages = map[Code]string{
	CodeInvalidMessage:      "message is invalid",
	CodeInvalidIdentity:     "identity is not a valid address",
	CodeInvalidTarget:       "block target is invalid",
	CodeInvalidAmount:       "amount is invalid",
	CodeInvalidQuery:        "query is invalid",
	CodeNotFound:            "record not found",
	CodeBlocked:             "identity is ineligible",
	CodeAlreadyParticipated: "identity already played",
	CodeAlreadyBlocked:      "target is already blocked",
	CodeInsufficientFunds:   "the pot cannot cover a payout right now, try again later",
	CodeVaultOverflow:       "vault balance would overflow",
	CodeStorageFailure:      "ledger storage is unavailable",
	CodeOutcomeFailure:      "outcome could not be decided",
	CodeUnauthorized:        "operator credentials are required",
}

// UserMessage returns the caller-facing message for the code.
func (c Code) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return "internal error"
}
