package actions

func init() {
	Register(&Action{
		ID:        ActionAutoStart,
		Use:       "autostart",
		Short:     "Manage automatic connection",
		Long:      "Choose which networks bring the tunnel up automatically",
		MenuLabel: "Auto-connect",
		IsSubmenu: true,
	})

	Register(&Action{
		ID:        ActionAutoStartShow,
		Parent:    ActionAutoStart,
		Use:       "show",
		Short:     "Show auto-connect settings",
		Long:      "Show the AutoStart flags and the on-demand rules derived from them",
		MenuLabel: "Show",
	})

	Register(&Action{
		ID:         ActionAutoStartSet,
		Parent:     ActionAutoStart,
		Use:        "set",
		Short:      "Change auto-connect settings",
		Long:       "Turn automatic connection on or off per network type. Flags not given are left unchanged.",
		ShowInMenu: cliOnly,
		Inputs: []InputField{
			{Name: "any", Label: "Connect on any network", Type: InputTypeBool},
			{Name: "wifi", Label: "Connect on Wi-Fi", Type: InputTypeBool},
			{Name: "ethernet", Label: "Connect on Ethernet", Type: InputTypeBool},
			{Name: "mobile", Label: "Connect on cellular", Type: InputTypeBool},
		},
	})
}
