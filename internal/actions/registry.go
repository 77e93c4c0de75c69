package actions

import (
	"sync"
)

var (
	registry = make(map[string]*Action)
	order    []string
	mu       sync.RWMutex
)

// Register adds an action to the registry. Actions are listed in the order
// they were first registered.
func Register(action *Action) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[action.ID]; !ok {
		order = append(order, action.ID)
	}
	registry[action.ID] = action
}

// Get retrieves an action by ID.
func Get(id string) *Action {
	mu.RLock()
	defer mu.RUnlock()
	return registry[id]
}

// All returns all registered actions in registration order.
func All() []*Action {
	mu.RLock()
	defer mu.RUnlock()

	actions := make([]*Action, 0, len(order))
	for _, id := range order {
		actions = append(actions, registry[id])
	}
	return actions
}

// TopLevel returns all top-level actions (no parent).
func TopLevel() []*Action {
	return GetChildren("")
}

// GetChildren returns immediate children of an action.
func GetChildren(actionID string) []*Action {
	mu.RLock()
	defer mu.RUnlock()

	var children []*Action
	for _, id := range order {
		if action := registry[id]; action.Parent == actionID {
			children = append(children, action)
		}
	}
	return children
}

// Unhandled returns the IDs of runnable actions without a handler.
func Unhandled() []string {
	var ids []string
	for _, action := range All() {
		if !action.IsSubmenu && action.Handler == nil {
			ids = append(ids, action.ID)
		}
	}
	return ids
}

// SetHandler sets the handler for an action.
func SetHandler(actionID string, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	if action, ok := registry[actionID]; ok {
		action.Handler = handler
	}
}
