package resource

import "time"

type GetProjectDetailsResponse struct {
	Project Project `json:"project"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TokenResponse struct {
	Token Token `json:"token"`
}

type Token struct {
	ExpiresAt time.Time `json:"expires_at"`
	Project   Project   `json:"project"`
}
