// Package actions provides the unified action system for the meshtun CLI
// and menu.
package actions

import (
	"context"
	"log/slog"

	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/session"
)

// InputType defines the type of input field.
type InputType int

const (
	// InputTypeText is a text input field.
	InputTypeText InputType = iota
	// InputTypePassword is a password input field (hidden).
	InputTypePassword
	// InputTypeSelect is a single-select dropdown.
	InputTypeSelect
	// InputTypeNumber is a numeric input field.
	InputTypeNumber
	// InputTypeBool is a boolean flag (CLI-only, not shown in interactive mode).
	// It is only recorded when the flag was given, so handlers can tell an
	// explicit false from an absent flag with Context.Has.
	InputTypeBool
)

// SelectOption defines an option for select inputs.
type SelectOption struct {
	Label       string
	Value       string
	Description string
	Recommended bool
}

// InputField defines an input field for an action.
type InputField struct {
	Name            string
	Label           string
	Description     string
	Type            InputType
	Required        bool
	Default         string
	Placeholder     string
	Options         []SelectOption
	OptionsFunc     func(ctx *Context) []SelectOption
	ShortFlag       rune
	ShowIf          func(ctx *Context) bool
	Validate        func(value string) error
	DefaultFunc     func(ctx *Context) string
	InteractiveOnly bool
}

// ConfirmConfig defines confirmation settings for an action.
type ConfirmConfig struct {
	Message     string
	Description string
	DefaultNo   bool
	ForceFlag   string
}

// ArgsSpec defines the positional arguments for an action. With AsFlag the
// argument is taken from --<Name> on the command line instead.
type ArgsSpec struct {
	Name        string
	Description string
	Required    bool
	AsFlag      bool
	PickerFunc  func(ctx *Context) (string, error)
}

// Handler is the function signature for action handlers.
type Handler func(ctx *Context) error

// Action defines a command/menu action.
type Action struct {
	ID         string
	Parent     string
	Use        string
	Short      string
	Long       string
	MenuLabel  string
	Args       *ArgsSpec
	Inputs     []InputField
	Confirm    *ConfirmConfig
	Handler    Handler
	Hidden     bool
	ShowInMenu func(ctx *Context) bool
	IsSubmenu  bool
}

// Context provides the execution context for action handlers.
type Context struct {
	Ctx           context.Context
	Session       *session.Session
	Logger        *slog.Logger
	Args          []string
	Values        map[string]interface{}
	Output        OutputWriter
	IsInteractive bool
}

// GetString returns a string value from the context.
func (c *Context) GetString(key string) string {
	if v, ok := c.Values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns an integer value from the context.
func (c *Context) GetInt(key string) int {
	if v, ok := c.Values[key]; ok {
		switch i := v.(type) {
		case int:
			return i
		case int64:
			return int(i)
		case float64:
			return int(i)
		}
	}
	return 0
}

// GetBool returns a boolean value from the context.
func (c *Context) GetBool(key string) bool {
	if v, ok := c.Values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Has reports whether a value was supplied for key.
func (c *Context) Has(key string) bool {
	_, ok := c.Values[key]
	return ok
}

// GetArg returns the positional argument at the given index.
func (c *Context) GetArg(index int) string {
	if index >= 0 && index < len(c.Args) {
		return c.Args[index]
	}
	return ""
}

// HasArg returns true if a positional argument exists at the given index.
func (c *Context) HasArg(index int) bool {
	return index >= 0 && index < len(c.Args)
}

// Set sets a value in the context.
func (c *Context) Set(key string, value interface{}) {
	if c.Values == nil {
		c.Values = make(map[string]interface{})
	}
	c.Values[key] = value
}

// Reload opens the session from the profile on disk.
func (c *Context) Reload() error {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := config.EnsureDirs(); err != nil {
		return err
	}
	sess, err := session.Open(c.Ctx, session.Options{
		ProfilePath: config.ProfilePath(),
		LegacyPath:  config.LegacyConfigPath(),
		Identity:    engine.NewYggdrasil(logger),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	c.Session = sess
	return nil
}
