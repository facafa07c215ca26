package model

// BindingCriteria narrows the set of candidate bindings. Zero-valued fields
// do not filter.
type BindingCriteria struct {
	AssetIDs []string
	NodeID   string // Expands to every asset in the node's subtree.
	Address  string // Exact match.
	Hostname string // Exact match.

	// Username matches exactly; UsernameContains matches a substring.
	Username         string
	UsernameContains string

	// Search is a substring matched against address, hostname and username.
	Search string

	// BindingIDs restricts results to bindings whose ID() is listed.
	BindingIDs []string

	// Preference is a tie-break hint when collapsing candidates; it never
	// removes a group from the result.
	Preference Preference
}

// IsEmpty reports whether no filter is set.
func (c BindingCriteria) IsEmpty() bool {
	return len(c.AssetIDs) == 0 && c.NodeID == "" && c.Address == "" &&
		c.Hostname == "" && c.Username == "" && c.UsernameContains == "" &&
		c.Search == "" && len(c.BindingIDs) == 0
}
