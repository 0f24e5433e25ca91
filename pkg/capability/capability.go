package capability

import "github.com/angelmondragon/mesa-backend/pkg/enums"

// Action names a command an actor can attempt against the core. The core
// consults CanPerform before executing the command; the presentation layer
// only mirrors the same checks.
type Action string

const (
	ActionTableOpen       Action = "table.open"
	ActionOrderAddLine    Action = "order.add_line"
	ActionOrderRemoveLine Action = "order.remove_line"
	ActionOrderSubmit     Action = "order.submit"
	ActionOrderPay        Action = "order.pay"
	ActionOrderReopen     Action = "order.reopen"
	ActionKitchenQueue    Action = "kitchen.queue"
	ActionKitchenAccept   Action = "kitchen.accept"
	ActionKitchenComplete Action = "kitchen.complete"
	ActionInventoryManage Action = "inventory.manage"
	ActionMenuManage      Action = "menu.manage"
)

var grants = map[enums.ActorRole][]Action{
	enums.ActorRoleWaiter: {
		ActionTableOpen,
		ActionOrderAddLine,
		ActionOrderRemoveLine,
		ActionOrderSubmit,
	},
	enums.ActorRoleChef: {
		ActionKitchenQueue,
		ActionKitchenAccept,
		ActionKitchenComplete,
	},
	enums.ActorRoleCashier: {
		ActionOrderPay,
	},
}

// CanPerform reports whether the role is allowed to execute the action.
// Managers can perform everything.
func CanPerform(role enums.ActorRole, action Action) bool {
	if !role.IsValid() {
		return false
	}
	if role == enums.ActorRoleManager {
		return true
	}
	for _, granted := range grants[role] {
		if granted == action {
			return true
		}
	}
	return false
}
