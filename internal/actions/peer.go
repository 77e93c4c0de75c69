package actions

func init() {
	// Peer parent action (submenu)
	Register(&Action{
		ID:        ActionPeer,
		Use:       "peer",
		Short:     "Manage peers",
		Long:      "Manage the peers the node connects to",
		MenuLabel: "Peers",
		IsSubmenu: true,
	})

	// peer list
	Register(&Action{
		ID:        ActionPeerList,
		Parent:    ActionPeer,
		Use:       "list",
		Short:     "List peers",
		Long:      "List configured peers and, when connected, their live status",
		MenuLabel: "List",
	})

	// peer add
	Register(&Action{
		ID:        ActionPeerAdd,
		Parent:    ActionPeer,
		Use:       "add",
		Short:     "Add a peer",
		Long:      "Add a peer URI such as tls://host:port",
		MenuLabel: "Add",
		Inputs: []InputField{
			{
				Name:        "uri",
				Label:       "Peer URI",
				ShortFlag:   'u',
				Type:        InputTypeText,
				Required:    true,
				Placeholder: "tls://203.0.113.7:443",
				Description: "Peer to connect to",
				Validate:    ValidatePeer,
			},
		},
	})

	// peer remove
	Register(&Action{
		ID:        ActionPeerRemove,
		Parent:    ActionPeer,
		Use:       "remove",
		Short:     "Remove a peer",
		Long:      "Remove a configured peer by URI",
		MenuLabel: "Remove",
		Args: &ArgsSpec{
			Name:        "uri",
			Description: "Peer URI",
			Required:    true,
			AsFlag:      true,
			PickerFunc:  PeerPicker,
		},
		Confirm: &ConfirmConfig{
			Message:   "Remove peer?",
			DefaultNo: true,
			ForceFlag: "force",
		},
	})

	// peer remove-at
	Register(&Action{
		ID:         ActionPeerRemoveAt,
		Parent:     ActionPeer,
		Use:        "remove-at",
		Short:      "Remove a peer by position",
		Long:       "Remove the peer at the given zero-based position in 'peer list'",
		ShowInMenu: cliOnly,
		Inputs: []InputField{
			{
				Name:        "index",
				Label:       "Position",
				ShortFlag:   'i',
				Type:        InputTypeNumber,
				Required:    true,
				Description: "Zero-based position of the peer",
			},
		},
	})
}
