package voice

// WebhookEvent is the subset of a provider status callback this service
// acts on. Completion payloads additionally carry transcript, credits and
// duration; intermediate updates carry only call_id and status.
type WebhookEvent struct {
	CallID     string     `json:"call_id"`
	Status     string     `json:"status"`
	Transcript Transcript `json:"transcript"`
	Credits    *float64   `json:"credits"`
	Duration   *float64   `json:"duration"`
}
