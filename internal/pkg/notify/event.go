package notify

// Event is the JSON body sent to the notification endpoints.
type Event struct {
	NotificationType string  `json:"notification_type"`
	UserID           uint    `json:"user_id,omitempty"`
	UserName         string  `json:"user_name"`
	UserEmail        string  `json:"user_email"`
	UserPhone        string  `json:"user_phone,omitempty"`
	UserRole         string  `json:"user_role,omitempty"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	DocumentID       uint    `json:"document_id,omitempty"`
	DocumentFilename string  `json:"document_filename,omitempty"`
	VerificationCode string  `json:"verification_code,omitempty"`
	PaymentID        uint    `json:"payment_id,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	PaymentMethod    string  `json:"payment_method,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Comment          string  `json:"comment,omitempty"`
	ReceiptURL       string  `json:"receipt_url,omitempty"`
}
