package menu

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/net2share/go-corelib/tui"
	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/handlers"
)

// isInfoViewAction returns true for actions that manage their own TUI display
// (dialogs, editors, progress views) and should NOT be wrapped in a progress
// view.
func isInfoViewAction(actionID string) bool {
	switch actionID {
	case actions.ActionStatus, actions.ActionUp, actions.ActionDown:
		return true
	case actions.ActionPeerAdd, actions.ActionPeerRemove:
		return true
	case actions.ActionConfigEdit, actions.ActionConfigImport, actions.ActionConfigRegenerate:
		return true
	}
	return false
}

// newActionContext creates an action context bound to the menu session.
func newActionContext(args []string) *actions.Context {
	return &actions.Context{
		Ctx:           appCtx,
		Session:       sess,
		Logger:        logger,
		Args:          args,
		Values:        make(map[string]interface{}),
		Output:        handlers.NewTUIOutput(),
		IsInteractive: true,
	}
}

// BuildMenuOptions builds menu options from child actions.
func BuildMenuOptions(parentID string) []tui.MenuOption {
	var options []tui.MenuOption

	ctx := newActionContext(nil)
	for _, action := range actions.GetChildren(parentID) {
		if action.ShowInMenu != nil && !action.ShowInMenu(ctx) {
			continue
		}
		if action.Hidden {
			continue
		}

		label := action.MenuLabel
		if label == "" {
			label = action.Short
		}
		if action.IsSubmenu {
			label += " →"
		}

		options = append(options, tui.MenuOption{
			Label: label,
			Value: action.ID,
		})
	}

	return options
}

// RunAction executes an action in interactive mode.
func RunAction(actionID string) error {
	action := actions.Get(actionID)
	if action == nil {
		return fmt.Errorf("unknown action: %s", actionID)
	}

	ctx := newActionContext(nil)
	if err := collectArg(ctx, action); err != nil {
		return err
	}
	if err := collectInputs(ctx, action); err != nil {
		return err
	}
	if err := confirm(action, ""); err != nil {
		return err
	}
	return runHandler(ctx, action)
}

// collectArg fills the action's argument from a picker or a prompt.
func collectArg(ctx *actions.Context, action *actions.Action) error {
	spec := action.Args
	if spec == nil {
		return nil
	}

	var value string
	switch {
	case spec.PickerFunc != nil:
		selected, err := runPickerForAction(ctx, action)
		if errors.Is(err, actions.ErrCancelled) {
			return errCancelled
		}
		if err != nil {
			return err
		}
		value = selected
	case spec.Required:
		entered, confirmed, err := tui.RunInput(tui.InputConfig{
			Title:       spec.Name,
			Description: spec.Description,
		})
		if err != nil {
			return err
		}
		if !confirmed {
			return errCancelled
		}
		value = entered
	default:
		return nil
	}

	if value == "" {
		return errCancelled
	}
	ctx.Values[spec.Name] = value
	return nil
}

// confirm asks the action's confirmation question. subject, when set, is
// quoted after the message.
func confirm(action *actions.Action, subject string) error {
	if action.Confirm == nil {
		return nil
	}
	title := action.Confirm.Message
	if subject != "" {
		title = fmt.Sprintf("%s '%s'", title, subject)
	}
	ok, err := tui.RunConfirm(tui.ConfirmConfig{
		Title:       title,
		Description: action.Confirm.Description,
		Default:     !action.Confirm.DefaultNo,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	return nil
}

// collectInputs prompts for every input the action shows interactively.
// Bool inputs are flags only and are never asked for.
func collectInputs(ctx *actions.Context, action *actions.Action) error {
	for _, input := range action.Inputs {
		if input.ShowIf != nil && !input.ShowIf(ctx) {
			continue
		}

		var (
			value interface{}
			err   error
		)
		switch input.Type {
		case actions.InputTypeText, actions.InputTypePassword, actions.InputTypeNumber:
			value, err = promptText(ctx, input)
		case actions.InputTypeSelect:
			value, err = promptSelect(ctx, input)
		default:
			continue
		}
		if err != nil {
			return err
		}
		if value != nil {
			ctx.Values[input.Name] = value
		}
	}
	return nil
}

// promptText asks until the value validates. Number inputs come back as int.
func promptText(ctx *actions.Context, input actions.InputField) (interface{}, error) {
	defaultVal := input.Default
	if input.DefaultFunc != nil {
		defaultVal = input.DefaultFunc(ctx)
	}

	description := input.Description
	switch {
	case defaultVal != "" && description != "":
		description = fmt.Sprintf("%s (default: %s)", description, defaultVal)
	case defaultVal != "":
		description = fmt.Sprintf("Default: %s", defaultVal)
	}

	var problem error
	for {
		desc := description
		if problem != nil {
			desc = fmt.Sprintf("%s\n⚠ %s", desc, problem)
		}

		val, confirmed, err := tui.RunInput(tui.InputConfig{
			Title:       input.Label,
			Description: desc,
			Placeholder: input.Placeholder,
			Value:       defaultVal,
			Password:    input.Type == actions.InputTypePassword,
		})
		if err != nil {
			return nil, err
		}
		if !confirmed {
			return nil, errCancelled
		}
		if val == "" {
			val = defaultVal
		}

		if problem = checkInput(input, val); problem != nil {
			continue
		}
		if input.Type != actions.InputTypeNumber {
			return val, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			problem = fmt.Errorf("%s must be a number", input.Label)
			continue
		}
		return n, nil
	}
}

func checkInput(input actions.InputField, val string) error {
	if val == "" {
		if input.Required {
			return fmt.Errorf("%s is required", input.Label)
		}
		return nil
	}
	if input.Validate != nil {
		return input.Validate(val)
	}
	return nil
}

// promptSelect shows the input's options as a menu. A skipped optional
// input returns nil.
func promptSelect(ctx *actions.Context, input actions.InputField) (interface{}, error) {
	options := input.Options
	if input.OptionsFunc != nil {
		options = input.OptionsFunc(ctx)
	}

	var menuOptions []tui.MenuOption
	for _, opt := range options {
		label := opt.Label
		if opt.Recommended {
			label += " (Recommended)"
		}
		menuOptions = append(menuOptions, tui.MenuOption{Label: label, Value: opt.Value})
	}
	if !input.Required {
		menuOptions = append(menuOptions, tui.MenuOption{Label: "Skip", Value: ""})
	}

	val, err := tui.RunMenu(tui.MenuConfig{
		Title:       input.Label,
		Description: input.Description,
		Options:     menuOptions,
	})
	if err != nil {
		return nil, err
	}
	if val == "" {
		if input.Required {
			return nil, errCancelled
		}
		return nil, nil
	}
	return val, nil
}

// runHandler runs the action handler, inside a progress view unless the
// action draws its own.
func runHandler(ctx *actions.Context, action *actions.Action) error {
	if action.Handler == nil {
		return fmt.Errorf("no handler for action %s", action.ID)
	}

	tuiOut := ctx.Output.(*handlers.TUIOutput)
	if !isInfoViewAction(action.ID) {
		tuiOut.BeginProgress(action.Short)
		defer tuiOut.EndProgress()
	}

	return action.Handler(ctx)
}

// runPickerForAction shows a picker for an action's argument.
func runPickerForAction(ctx *actions.Context, action *actions.Action) (string, error) {
	if _, err := action.Args.PickerFunc(ctx); err != nil {
		return "", err
	}

	options := actions.GetPickerOptions(ctx)
	if len(options) == 0 {
		return "", actions.NoPeersError()
	}

	var tuiOptions []tui.MenuOption
	for _, opt := range options {
		tuiOptions = append(tuiOptions, tui.MenuOption{
			Label: opt.Label,
			Value: opt.Value,
		})
	}
	tuiOptions = append(tuiOptions, tui.MenuOption{Label: "Back", Value: ""})

	return tui.RunMenu(tui.MenuConfig{
		Title:   fmt.Sprintf("Select %s", action.Args.Name),
		Options: tuiOptions,
	})
}

// runActionWithArgs runs an action with a preselected argument, asking for
// confirmation with the argument in the message.
func runActionWithArgs(actionID, arg string) error {
	action := actions.Get(actionID)
	if action == nil {
		return fmt.Errorf("unknown action: %s", actionID)
	}
	if err := confirm(action, arg); err != nil {
		return err
	}

	ctx := newActionContext(nil)
	if action.Args != nil {
		ctx.Values[action.Args.Name] = arg
	}
	return runHandler(ctx, action)
}

// RunSubmenu runs a submenu loop for a parent action.
func RunSubmenu(parentID string) error {
	action := actions.Get(parentID)
	if action == nil {
		return fmt.Errorf("unknown action: %s", parentID)
	}

	for {
		options := BuildMenuOptions(parentID)
		options = append(options, tui.MenuOption{Label: "Back", Value: "back"})

		title := action.MenuLabel
		if title == "" {
			title = action.Short
		}

		choice, err := tui.RunMenu(tui.MenuConfig{
			Title:   title,
			Options: options,
		})
		if err != nil || choice == "" || choice == "back" {
			return errCancelled
		}

		if child := actions.Get(choice); child != nil && child.IsSubmenu {
			_ = RunSubmenu(choice)
			continue
		}

		if err := RunAction(choice); err != nil && !errors.Is(err, errCancelled) {
			_ = tui.ShowMessage(tui.AppMessage{Type: "error", Message: err.Error()})
		}
	}
}
