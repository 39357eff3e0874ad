package models

// SignupRequest creates an account
type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest authenticates by email
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterDeviceRequest claims a switch unit for the caller
type RegisterDeviceRequest struct {
	ID    string `json:"id" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Model string `json:"model"`
}

// ControlRequest flips a switch
type ControlRequest struct {
	State bool `json:"state"`
}

// HeartbeatRequest is the HTTP fallback for devices without a live socket
type HeartbeatRequest struct {
	SwitchState    bool    `json:"switch_state"`
	CurrentReading float64 `json:"current_reading"`
	Voltage        float64 `json:"voltage"`
}

// ScheduleRequest creates or replaces a weekly rule
type ScheduleRequest struct {
	Name       string   `json:"name" binding:"required"`
	Hour       int      `json:"hour"`
	Minute     int      `json:"minute"`
	Action     string   `json:"action" binding:"required"`
	Days       []string `json:"days" binding:"required"`
	Enabled    *bool    `json:"enabled"`
	RepeatType string   `json:"repeat_type"`
}

// SubscriptionRequest registers a web-push endpoint
type SubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256DH string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}
