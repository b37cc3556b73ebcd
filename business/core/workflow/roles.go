package workflow

// Action names what a step does on the chain.
type Action string

// Set of actions a step can perform.
const (
	ActionQuery    Action = "query"
	ActionTransfer Action = "transfer"
	ActionDeploy   Action = "deploy"
	ActionNominate Action = "nominate"
	ActionVote     Action = "vote"
	ActionOperate  Action = "operate"
)

// RoleTable maps a zero based node index to the actions that node performs.
// A nil table lets every node perform every action.
type RoleTable map[int][]Action

// Allows reports whether the node performs the action.
func (rt RoleTable) Allows(node int, action Action) bool {
	if rt == nil {
		return true
	}

	for _, a := range rt[node] {
		if a == action {
			return true
		}
	}

	return false
}

// Only builds a table where just the listed nodes perform the action.
func Only(action Action, nodes ...int) RoleTable {
	rt := make(RoleTable, len(nodes))
	for _, n := range nodes {
		rt[n] = append(rt[n], action)
	}
	return rt
}
