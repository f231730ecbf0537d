package dtos

// WebhookEnvelope is the gateway's notification body. Only the event type
// and the nested payment amount matter to the claim engine; everything else
// is carried opaquely and never persisted.
type WebhookEnvelope struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Payment WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	Amount    int64  `json:"amount"` // centavos
	EndToEnd  string `json:"end_to_end_id,omitempty"`
	PaidAtRaw string `json:"paid_at,omitempty"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Matched  bool   `json:"matched"`
	Reason   string `json:"reason,omitempty"`
}
