package model

// PreferenceKind tags what a caller-supplied credential id refers to.
type PreferenceKind int

const (
	PreferNone       PreferenceKind = iota
	PreferSystemUser                // id is a system user id
	PreferAdminUser                 // id is an admin user id
	PreferExplicit                  // id is any credential id
)

// String returns the name used in logs.
func (k PreferenceKind) String() string {
	switch k {
	case PreferSystemUser:
		return "system_user"
	case PreferAdminUser:
		return "admin_user"
	case PreferExplicit:
		return "explicit"
	default:
		return "none"
	}
}

// Preference selects a specific credential, bypassing default precedence.
// The zero value means no preference.
type Preference struct {
	Kind PreferenceKind
	ID   string
}

// PreferSystem returns a preference for a system user id.
func PreferSystem(id string) Preference { return Preference{Kind: PreferSystemUser, ID: id} }

// PreferAdmin returns a preference for an admin user id.
func PreferAdmin(id string) Preference { return Preference{Kind: PreferAdminUser, ID: id} }

// PreferCredential returns a preference for any credential id.
func PreferCredential(id string) Preference { return Preference{Kind: PreferExplicit, ID: id} }

// IsSet reports whether a preference was supplied.
func (p Preference) IsSet() bool {
	return p.Kind != PreferNone && p.ID != ""
}

// Matches reports whether b is the credential the preference points at.
func (p Preference) Matches(b Binding) bool {
	if !p.IsSet() || b.CredentialID != p.ID {
		return false
	}
	switch p.Kind {
	case PreferSystemUser:
		return b.Kind == BindingKindSystem
	case PreferAdminUser:
		return b.Kind == BindingKindAdmin
	default:
		return true
	}
}
