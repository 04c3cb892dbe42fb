// Package security holds the token codec, the OIDC verifier and the
// role-to-permission mapping shared by every authenticated route
package security

import (
	"strconv"
	"strings"
)

// Roles understood by the permission resolver.
const (
	RoleCDNUser      = "cdnUser"
	RoleFileUser     = "fileUser"
	roleSizePrefix   = "fileSize_"
	defaultMaxSizeGB = 1
)

// Identity is a verified caller, regardless of whether it came from a CLI
// token or a browser session. Both carry the same claim shape.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

type Permissions struct {
	CanUploadCdn     bool  `json:"canUploadCdn"`
	CanUploadFile    bool  `json:"canUploadFile"`
	MaxFileSizeBytes int64 `json:"maxFileSizeBytes"`
}

// ParseRoles derives upload capabilities and the size ceiling from a role
// set. A fileSize_<N> role sets the ceiling to N gigabytes, last one parsed
// wins. Pure function, no side effects.
func ParseRoles(roles []string) Permissions {
	p := Permissions{
		MaxFileSizeBytes: defaultMaxSizeGB << 30,
	}

	for _, role := range roles {
		switch {
		case role == RoleCDNUser:
			p.CanUploadCdn = true
		case role == RoleFileUser:
			p.CanUploadFile = true
		case strings.HasPrefix(role, roleSizePrefix):
			sizeGB, err := strconv.Atoi(strings.TrimPrefix(role, roleSizePrefix))
			if err == nil && sizeGB > 0 {
				p.MaxFileSizeBytes = int64(sizeGB) << 30
			}
		}
	}

	return p
}
