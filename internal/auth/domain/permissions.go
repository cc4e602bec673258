package domain

// Club permission catalog. The "club_" prefix scopes the wildcard used in
// role definitions: "club_*" expands to every name below at role-creation
// time, never at check time.
const (
	PermReadClubConfidentialData = "club_read_club_confidential_data"
	PermReadClubData             = "club_read_club_data"
	PermModifyClubData           = "club_modify_club_data"
	PermDeleteClubData           = "club_delete_club_data"
	PermReadRoles                = "club_read_roles"
	PermModifyRoles              = "club_modify_roles"
	PermDeleteRoles              = "club_delete_roles"
	PermReadEmployees            = "club_read_employees"
	PermModifyEmployees          = "club_modify_employees"
	PermDeleteEmployees          = "club_delete_employees"
	PermReadPrograms             = "club_read_programs"
	PermModifyPrograms           = "club_modify_programs"
	PermDeletePrograms           = "club_delete_programs"
	PermReadMemberships          = "club_read_memberships"
	PermModifyMemberships        = "club_modify_memberships"
	PermDeleteMemberships        = "club_delete_memberships"
	PermReadBookings             = "club_read_bookings"
)

// PermissionWildcard expands to the whole catalog.
const PermissionWildcard = "club_*"

// AllPermissions lists the full catalog in a stable order.
func AllPermissions() []string {
	return []string{
		PermReadClubConfidentialData,
		PermReadClubData,
		PermModifyClubData,
		PermDeleteClubData,
		PermReadRoles,
		PermModifyRoles,
		PermDeleteRoles,
		PermReadEmployees,
		PermModifyEmployees,
		PermDeleteEmployees,
		PermReadPrograms,
		PermModifyPrograms,
		PermDeletePrograms,
		PermReadMemberships,
		PermModifyMemberships,
		PermDeleteMemberships,
		PermReadBookings,
	}
}

// DefaultRole seeds the role catalog on first start.
type DefaultRole struct {
	Name        string
	Description string
	Level       int
	Permissions []string
}

// DefaultClubRoles returns the built-in role hierarchy.
func DefaultClubRoles() []DefaultRole {
	return []DefaultRole{
		{
			Name:        "Owner",
			Description: "The owner of the club, has full control over the club and its settings.",
			Level:       0,
			Permissions: []string{PermissionWildcard},
		},
		{
			Name:        "Manager",
			Description: "Can manage club settings, courses, and bookings.",
			Level:       1,
			Permissions: []string{
				PermReadClubConfidentialData,
				PermReadClubData,
				PermModifyClubData,
				PermDeleteClubData,
				PermReadRoles,
				PermModifyRoles,
				PermDeleteRoles,
				PermReadPrograms,
				PermModifyPrograms,
				PermDeletePrograms,
				PermReadMemberships,
				PermModifyMemberships,
				PermDeleteMemberships,
				PermReadBookings,
			},
		},
		{
			Name:        "Instructor",
			Description: "Can manage courses and see bookings, but not club settings.",
			Level:       2,
			Permissions: []string{
				PermReadClubData,
				PermReadPrograms,
				PermModifyPrograms,
				PermDeletePrograms,
				PermReadBookings,
			},
		},
		{
			Name:        "Trainer",
			Description: "Can see bookings and manage their own courses.",
			Level:       10,
			Permissions: []string{
				PermReadPrograms,
				PermReadBookings,
			},
		},
	}
}
