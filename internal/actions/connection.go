package actions

func init() {
	Register(&Action{
		ID:        ActionUp,
		Use:       "up",
		Short:     "Connect to the mesh",
		Long:      "Start the tunnel process in the background and wait until the tunnel is running.",
		MenuLabel: "Connect",
	})

	Register(&Action{
		ID:        ActionDown,
		Use:       "down",
		Short:     "Disconnect from the mesh",
		Long:      "Stop the tunnel and the background tunnel process.",
		MenuLabel: "Disconnect",
	})

	Register(&Action{
		ID:        ActionStatus,
		Use:       "status",
		Short:     "Show tunnel status",
		Long:      "Show the node address, subnet and peer status of the running tunnel.",
		MenuLabel: "Status",
		Inputs: []InputField{
			{
				Name:        "watch",
				Label:       "Keep refreshing until interrupted",
				ShortFlag:   'w',
				Type:        InputTypeBool,
				Description: "Refresh every 2 seconds",
			},
		},
	})
}
