package actions

// Action IDs for type-safe references throughout the codebase.
const (
	// Connection actions
	ActionUp     = "up"
	ActionDown   = "down"
	ActionStatus = "status"

	// Peer actions
	ActionPeer         = "peer"
	ActionPeerList     = "peer.list"
	ActionPeerAdd      = "peer.add"
	ActionPeerRemove   = "peer.remove"
	ActionPeerRemoveAt = "peer.remove-at"

	// AutoStart actions
	ActionAutoStart     = "autostart"
	ActionAutoStartShow = "autostart.show"
	ActionAutoStartSet  = "autostart.set"

	// Config actions
	ActionConfig           = "config"
	ActionConfigShow       = "config.show"
	ActionConfigEdit       = "config.edit"
	ActionConfigExport     = "config.export"
	ActionConfigImport     = "config.import"
	ActionConfigRegenerate = "config.regenerate"
	ActionConfigNodeName   = "config.node-name"
	ActionConfigMulticast  = "config.multicast"
)
