package dtos

type CreateSessionRequest struct {
	Tier   string `json:"tier"`
	Mobile bool   `json:"mobile"`
}

type CreateSessionResponse struct {
	SessionID      string `json:"session_id"`
	ExactAmountDue int64  `json:"exact_amount_due"`
	DisplayAmount  string `json:"display_amount"`
	Credits        int64  `json:"credits"`
	Tier           string `json:"tier"`
	TTLSeconds     int64  `json:"ttl_seconds"`
	QRPayload      string `json:"qr_payload,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}

type SessionStatusResponse struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	ExactAmountDue   int64  `json:"exact_amount_due"`
	DisplayAmount    string `json:"display_amount"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type ManualReferenceRequest struct {
	Reference string `json:"reference"`
}
