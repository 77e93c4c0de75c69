package cmd

import (
	"fmt"
	"strconv"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/handlers"
	"github.com/spf13/cobra"
)

// BuildCobraCommand builds a Cobra command from an action.
func BuildCobraCommand(action *actions.Action) *cobra.Command {
	cmd := &cobra.Command{
		Use:    action.Use,
		Short:  action.Short,
		Long:   action.Long,
		Hidden: action.Hidden,
	}

	// Add flags for inputs
	for _, input := range action.Inputs {
		if input.InteractiveOnly {
			continue
		}
		short := ""
		if input.ShortFlag != 0 {
			short = string(input.ShortFlag)
		}
		switch input.Type {
		case actions.InputTypeText, actions.InputTypePassword, actions.InputTypeSelect:
			cmd.Flags().StringP(input.Name, short, input.Default, input.Label)
		case actions.InputTypeNumber:
			defaultVal := 0
			if input.Default != "" {
				if v, err := strconv.Atoi(input.Default); err == nil {
					defaultVal = v
				}
			}
			cmd.Flags().IntP(input.Name, short, defaultVal, input.Label)
		case actions.InputTypeBool:
			cmd.Flags().BoolP(input.Name, short, false, input.Label)
		}
	}

	// Args taken as a flag also accept a positional value
	if action.Args != nil && action.Args.AsFlag {
		cmd.Flags().String(action.Args.Name, "", action.Args.Description)
	}

	// Handle confirmation flag
	if action.Confirm != nil && action.Confirm.ForceFlag != "" {
		cmd.Flags().BoolP(action.Confirm.ForceFlag, "f", false, "Skip confirmation")
	}

	// Submenus have no RunE
	if action.IsSubmenu {
		return cmd
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := &actions.Context{
			Ctx:           cmd.Context(),
			Logger:        logger,
			Args:          args,
			Values:        make(map[string]interface{}),
			Output:        handlers.NewTUIOutput(),
			IsInteractive: false,
		}

		if action.Args != nil {
			if action.Args.AsFlag {
				if val, _ := cmd.Flags().GetString(action.Args.Name); val != "" {
					ctx.Values[action.Args.Name] = val
				}
			}
			if action.Args.Required && len(args) == 0 && !ctx.Has(action.Args.Name) {
				if action.Args.AsFlag {
					return fmt.Errorf("%s is required (positional or --%s)\n\nUsage: %s",
						action.Args.Name, action.Args.Name, cmd.UseLine())
				}
				return fmt.Errorf("%s is required\n\nUsage: %s", action.Args.Name, cmd.UseLine())
			}
		}

		// Collect values from flags. Bools are only recorded when given.
		for _, input := range action.Inputs {
			if input.InteractiveOnly {
				continue
			}
			changed := cmd.Flags().Changed(input.Name)
			if input.Required && !changed && input.Default == "" && input.DefaultFunc == nil {
				return fmt.Errorf("--%s is required\n\nUsage: %s", input.Name, cmd.UseLine())
			}
			switch input.Type {
			case actions.InputTypeText, actions.InputTypePassword, actions.InputTypeSelect:
				val, _ := cmd.Flags().GetString(input.Name)
				if !changed && input.DefaultFunc != nil {
					val = input.DefaultFunc(ctx)
				}
				if val != "" && input.Validate != nil {
					if err := input.Validate(val); err != nil {
						return err
					}
				}
				ctx.Values[input.Name] = val
			case actions.InputTypeNumber:
				val, _ := cmd.Flags().GetInt(input.Name)
				ctx.Values[input.Name] = val
			case actions.InputTypeBool:
				if changed {
					val, _ := cmd.Flags().GetBool(input.Name)
					ctx.Values[input.Name] = val
				}
			}
		}

		// Handle confirmation, require --force in CLI mode
		if action.Confirm != nil {
			force, _ := cmd.Flags().GetBool(action.Confirm.ForceFlag)
			if !force {
				return fmt.Errorf("%s\n\nUse --force to confirm", action.Confirm.Message)
			}
			ctx.Values[action.Confirm.ForceFlag] = force
		}

		if action.Handler == nil {
			return fmt.Errorf("no handler for action %s", action.ID)
		}

		return action.Handler(ctx)
	}

	return cmd
}

// RegisterActionsWithRoot adds all action-based commands to a root command.
func RegisterActionsWithRoot(root *cobra.Command) {
	for _, action := range actions.TopLevel() {
		cmd := BuildCobraCommand(action)
		for _, child := range actions.GetChildren(action.ID) {
			cmd.AddCommand(BuildCobraCommand(child))
		}
		root.AddCommand(cmd)
	}
}
