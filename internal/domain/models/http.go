package models

// SignalRequest is the producer-surface input for a new signal job.
type SignalRequest struct {
	Symbol      string `json:"symbol" validate:"required,min=5,max=20,uppercase"`
	Holding     string `json:"holding" default:"auto" validate:"oneof=scalp daily swing auto"`
	Risk        string `json:"risk" default:"growth" validate:"oneof=safe growth aggressive"`
	ImageBase64 string `json:"image_base64,omitempty" validate:"omitempty,base64"`
	UserID      string `json:"user_id" default:"anonymous"`
}

// SignalAccepted is returned when a job has been enqueued.
type SignalAccepted struct {
	JobID string `json:"job_id"`
}

// HistoryQuery filters the signal history endpoint.
type HistoryQuery struct {
	Symbol string `query:"symbol"`
	UserID string `query:"user_id"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=100"`
}
