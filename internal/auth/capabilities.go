package auth

import "github.com/vimaru/luyenthi/internal/domain"

// Capabilities is the single place role strings are interpreted.
// Handlers consume capabilities, never raw role comparisons.
type Capabilities struct {
	CanManageRooms   bool
	CanSendBroadcast bool
	CanViewAnalytics bool
	CanManageClasses bool
	CanKick          bool
}

// CapabilitiesFor resolves a role into its capability set.
func CapabilitiesFor(role domain.Role) Capabilities {
	switch role {
	case domain.RoleAdmin:
		return Capabilities{
			CanManageRooms:   true,
			CanSendBroadcast: true,
			CanViewAnalytics: true,
			CanManageClasses: true,
			CanKick:          true,
		}
	case domain.RoleLanhDao, domain.RoleQuanLy:
		return Capabilities{
			CanManageRooms:   true,
			CanSendBroadcast: true,
			CanViewAnalytics: true,
			CanManageClasses: true,
			CanKick:          true,
		}
	case domain.RoleTeacher:
		return Capabilities{
			CanManageRooms:   true,
			CanSendBroadcast: false,
			CanViewAnalytics: false,
			CanManageClasses: false,
			CanKick:          true,
		}
	default:
		return Capabilities{}
	}
}
