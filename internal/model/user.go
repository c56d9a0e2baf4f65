package model

import "time"

// User is a member profile with its follow graph.
type User struct {
	ID          string    `doc:"-" json:"id"`
	DisplayName string    `doc:"displayName" json:"displayName"`
	Followers   []string  `doc:"followers" json:"followers"`
	Following   []string  `doc:"following" json:"following"`
	CreatedAt   time.Time `doc:"createdAt" json:"createdAt"`
}

// FollowResult reports the follow state after a toggle.
type FollowResult struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// DeviceToken is a push registration of one device.
type DeviceToken struct {
	ID        string    `doc:"-" json:"id"`
	UserID    string    `doc:"userId" json:"userId"`
	Token     string    `doc:"token" json:"token"`
	Platform  string    `doc:"platform" json:"platform,omitempty"`
	CreatedAt time.Time `doc:"createdAt" json:"createdAt"`
}

// RegisterDeviceRequest registers a push token for the session user.
type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// UpdateProfileRequest sets the session user's display name.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
}
