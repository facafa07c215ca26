package model

import "time"

// Node is a grouping of assets. Nodes form a tree through ParentID; an empty
// ParentID marks a root.
type Node struct {
	ID        string
	Name      string
	ParentID  string
	CreatedAt time.Time
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == ""
}
