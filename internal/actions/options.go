package actions

import (
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/session"
)

// ExportFormatOptions returns the available export formats.
func ExportFormatOptions() []SelectOption {
	return []SelectOption{
		{
			Label:       "JSON",
			Value:       session.FormatJSON,
			Description: "Readable by any Yggdrasil node",
			Recommended: true,
		},
		{
			Label:       "YAML",
			Value:       session.FormatYAML,
			Description: "Easier to edit by hand",
		},
	}
}

// ValidatePeer validates a peer URI.
func ValidatePeer(value string) error {
	if err := config.ValidatePeerURI(value); err != nil {
		return NewActionError(err.Error(), "Peer URIs look like tls://host:port or tcp://host:port")
	}
	return nil
}

// PeerPicker provides interactive peer selection.
func PeerPicker(ctx *Context) (string, error) {
	if ctx.Session == nil {
		if err := ctx.Reload(); err != nil {
			return "", err
		}
	}

	peers := ctx.Session.Peers()
	if len(peers) == 0 {
		return "", NoPeersError()
	}

	var options []SelectOption
	for _, uri := range peers {
		options = append(options, SelectOption{
			Label: uri,
			Value: uri,
		})
	}

	ctx.Set(pickerOptionsKey, options)
	return "", nil
}

// pickerOptionsKey holds the options a PickerFunc offers.
const pickerOptionsKey = "_picker_options"

// GetPickerOptions returns the options set by the last PickerFunc call.
func GetPickerOptions(ctx *Context) []SelectOption {
	options, _ := ctx.Values[pickerOptionsKey].([]SelectOption)
	return options
}

// cliOnly hides an action from the interactive menu.
func cliOnly(*Context) bool { return false }
