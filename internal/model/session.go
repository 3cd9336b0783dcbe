package model

import "strings"

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleViewer Role = "Viewer"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

// Capabilities is resolved once per session from the user's role.
type Capabilities struct {
	MutateHierarchy bool `json:"mutateHierarchy"`
	ManageSignals   bool `json:"manageSignals"`
	Import          bool `json:"import"`
	Download        bool `json:"download"`
	RequestStats    bool `json:"requestStats"`
	NotificationLog bool `json:"notificationLog"`
}

type Capability string

const (
	CapMutateHierarchy Capability = "mutate_hierarchy"
	CapManageSignals   Capability = "manage_signals"
	CapImport          Capability = "import"
	CapDownload        Capability = "download"
	CapRequestStats    Capability = "request_stats"
	CapNotificationLog Capability = "notification_log"
)

func CapabilitiesFor(role Role) Capabilities {
	if strings.EqualFold(strings.TrimSpace(string(role)), string(RoleAdmin)) {
		return Capabilities{
			MutateHierarchy: true,
			ManageSignals:   true,
			Import:          true,
			Download:        true,
			RequestStats:    true,
			NotificationLog: true,
		}
	}

	return Capabilities{Download: true}
}

func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapMutateHierarchy:
		return c.MutateHierarchy
	case CapManageSignals:
		return c.ManageSignals
	case CapImport:
		return c.Import
	case CapDownload:
		return c.Download
	case CapRequestStats:
		return c.RequestStats
	case CapNotificationLog:
		return c.NotificationLog
	default:
		return false
	}
}

type SessionData struct {
	User         User         `json:"user"`
	Capabilities Capabilities `json:"capabilities"`
}
