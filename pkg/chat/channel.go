package chat

// AccessLevel gates who may view and post in a channel.
type AccessLevel string

const (
	AccessOpen      AccessLevel = "open"
	AccessFree      AccessLevel = "free"
	AccessPremium   AccessLevel = "premium"
	AccessElite     AccessLevel = "elite"
	AccessReadOnly  AccessLevel = "read-only"
	AccessAdminOnly AccessLevel = "admin-only"
)

// Channel describes a chat channel as served by the remote catalog.
// Immutable for the lifetime of a session; management CRUD is external.
type Channel struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Category    string      `json:"category,omitempty"`
	AccessLevel AccessLevel `json:"access_level"`
	Locked      bool        `json:"locked,omitempty"`
}
