package actions

func init() {
	// Config parent action (submenu)
	Register(&Action{
		ID:        ActionConfig,
		Use:       "config",
		Short:     "Manage configuration",
		Long:      "Show, edit, import or export the node configuration",
		MenuLabel: "Configure",
		IsSubmenu: true,
	})

	// config show
	Register(&Action{
		ID:        ActionConfigShow,
		Parent:    ActionConfig,
		Use:       "show",
		Short:     "Show current configuration",
		Long:      "Display the current configuration",
		MenuLabel: "Show",
	})

	// config edit
	Register(&Action{
		ID:        ActionConfigEdit,
		Parent:    ActionConfig,
		Use:       "edit",
		Short:     "Edit configuration",
		Long:      "Open the configuration document in $EDITOR and import it when the editor exits",
		MenuLabel: "Edit",
	})

	// config export
	Register(&Action{
		ID:        ActionConfigExport,
		Parent:    ActionConfig,
		Use:       "export",
		Short:     "Export configuration",
		Long:      "Write the configuration document to a file, or to stdout with --out -",
		MenuLabel: "Export",
		Inputs: []InputField{
			{
				Name:        "format",
				Label:       "Format",
				Type:        InputTypeSelect,
				Options:     ExportFormatOptions(),
				Default:     "json",
				Description: "Output format",
			},
			{
				Name:        "out",
				Label:       "Output file",
				ShortFlag:   'o',
				Type:        InputTypeText,
				Description: "Destination (defaults to yggdrasil-<public key>.conf.json)",
			},
		},
	})

	// config import
	Register(&Action{
		ID:        ActionConfigImport,
		Parent:    ActionConfig,
		Use:       "import FILE",
		Short:     "Import configuration",
		Long:      "Replace the configuration document with a JSON or YAML file",
		MenuLabel: "Import",
		Args: &ArgsSpec{
			Name:        "file",
			Description: "Path to the document",
			Required:    true,
		},
	})

	// config regenerate
	Register(&Action{
		ID:        ActionConfigRegenerate,
		Parent:    ActionConfig,
		Use:       "regenerate",
		Short:     "Generate a new identity",
		Long:      "Replace the node keys with new ones. Peers and auto-connect settings are kept.",
		MenuLabel: "Regenerate Keys",
		Confirm: &ConfirmConfig{
			Message:     "Generate a new identity?",
			Description: "The node address will change.",
			DefaultNo:   true,
			ForceFlag:   "force",
		},
	})

	// config node-name
	Register(&Action{
		ID:        ActionConfigNodeName,
		Parent:    ActionConfig,
		Use:       "node-name",
		Short:     "Set node name",
		Long:      "Set the name advertised in node info. An empty name picks a random one.",
		MenuLabel: "Node Name",
		Inputs: []InputField{
			{
				Name:        "name",
				Label:       "Node name",
				ShortFlag:   'n',
				Type:        InputTypeText,
				Description: "Leave empty for a random name",
				DefaultFunc: func(ctx *Context) string {
					if ctx.Session != nil {
						return ctx.Session.NodeName()
					}
					return ""
				},
			},
		},
	})

	// config multicast
	Register(&Action{
		ID:         ActionConfigMulticast,
		Parent:     ActionConfig,
		Use:        "multicast",
		Short:      "Set multicast behaviour",
		Long:       "Turn local multicast beaconing and listening on or off. Flags not given are left unchanged.",
		ShowInMenu: cliOnly,
		Inputs: []InputField{
			{Name: "beacon", Label: "Advertise this node on the local network", Type: InputTypeBool},
			{Name: "listen", Label: "Accept peerings from the local network", Type: InputTypeBool},
		},
	})
}
