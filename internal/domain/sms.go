package domain

import "time"

// SmsMessage is an intercepted text message that may carry a two-factor
// code. Used flips to true at most once, when the embedded code is
// consumed by a checkout; messages are never deleted.
type SmsMessage struct {
	ID         int64     `json:"id"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	Used       bool      `json:"used"`
}
