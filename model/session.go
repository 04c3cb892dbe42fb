package model

// Session record types.
const (
	SessionAuthState = "auth_state"
	SessionCLIAuth   = "cli_auth"
)

// CLI auth handshake states.
const (
	CLIStatusPending    = "pending"
	CLIStatusAuthorized = "authorized"
)

// Session holds short-lived auth handshake state: OIDC login state records
// and pending CLI device authorizations. Rows are reaped once their TTL
// passes, there is no explicit logout path for them.
type Session struct {
	ID     string `gorm:"primaryKey"`
	Type   string `gorm:"not null"`
	Status string
	Nonce  string

	// Set once a CLI handshake is authorized by the browser side
	CLIToken *string
	UserID   string
	Email    string
	Name     string

	// Unix second after which the row is garbage
	TTL int64 `gorm:"column:ttl;index"`
}
