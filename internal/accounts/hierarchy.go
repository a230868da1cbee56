package accounts

import "sort"

// Node is an account with its children attached.
type Node struct {
	Account
	Children []*Node `json:"children,omitempty"`
}

// BuildHierarchy folds a flat account set into a forest keyed by ParentID.
// Siblings are ordered by account code and levels are reassigned from walk
// depth, so a stale stored level cannot leak into the output. Accounts whose
// parent is missing from the set are treated as roots.
func BuildHierarchy(accounts []Account) []*Node {
	nodes := make(map[string]*Node, len(accounts))
	for i := range accounts {
		nodes[accounts[i].ID] = &Node{Account: accounts[i]}
	}
	var roots []*Node
	for _, node := range nodes {
		if node.ParentID != "" {
			if parent, ok := nodes[node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	sortSiblings(roots)
	for _, root := range roots {
		assignLevels(root, 1)
	}
	return roots
}

func sortSiblings(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].AccountCode < nodes[j].AccountCode })
	for _, node := range nodes {
		sortSiblings(node.Children)
	}
}

func assignLevels(node *Node, level int) {
	node.Level = level
	for _, child := range node.Children {
		assignLevels(child, level+1)
	}
}
