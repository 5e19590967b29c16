package connections

import "time"

// GoogleConnectionID is the single-row key for the Google account link.
const GoogleConnectionID = "connection:google"

// GoogleScopes are the OAuth scopes the pollers and executors need.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/calendar.events",
}

// Connection is a stored provider account link. Token fields hold sealed
// payloads, never plaintext.
type Connection struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	Scopes            []string
	AccessToken       string
	RefreshToken      string
	ConnectedAt       time.Time
	UpdatedAt         time.Time
}

// Status is the connection view exposed to callers. It never carries tokens.
type Status struct {
	Connected         bool       `json:"connected"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"providerAccountId,omitempty"`
	Scopes            []string   `json:"scopes"`
	ConnectedAt       *time.Time `json:"connectedAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// ConnectParams carries the OAuth exchange outcome to be stored.
type ConnectParams struct {
	UserID            string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	Scopes            []string
	Now               time.Time
}
