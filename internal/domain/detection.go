package domain

// Detection statuses returned by the detection endpoint.
const (
	StatusFraud      = "Fraud"
	StatusSuspicious = "Suspicious"
	StatusComplete   = "Complete"
)

// Detection sources.
const (
	SourceModel = "model"
	SourceRule  = "rule"
	SourceLocal = "local"
)

// DetectionRequest is the wire payload for POST /api/detect-fraud.
type DetectionRequest struct {
	TransactionID      string  `json:"transaction_id"`
	PayerID            string  `json:"payer_id"`
	Amount             float64 `json:"amount"`
	PaymentMethod      string  `json:"payment_method"`
	Channel            string  `json:"channel"`
	Country            string  `json:"country,omitempty"`
	IPCountry          string  `json:"ipCountry,omitempty"`
	RecentTransactions int     `json:"recentTransactions"`
	Timestamp          string  `json:"timestamp"`
}

// DetectionResponse is the wire payload returned by the detection endpoint.
type DetectionResponse struct {
	TransactionID    string  `json:"transaction_id"`
	PayerID          string  `json:"payer_id"`
	Amount           float64 `json:"amount"`
	IsFraudPredicted bool    `json:"is_fraud_predicted"`
	FraudSource      string  `json:"fraud_source"`
	FraudReason      string  `json:"fraud_reason"`
	FraudScore       float64 `json:"fraud_score"`
	Status           string  `json:"status"`
	UserVerified     bool    `json:"user_verified"`
	PopupMessage     string  `json:"popup_message,omitempty"`
	Timestamp        string  `json:"timestamp"`
}

// ConfirmationResponse is the wire payload for POST /api/confirm-transaction.
type ConfirmationResponse struct {
	Message       string `json:"message"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	UserVerified  bool   `json:"user_verified"`
}
