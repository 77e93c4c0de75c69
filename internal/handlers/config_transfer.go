package handlers

import (
	"fmt"
	"os"

	"github.com/net2share/meshtun/internal/actions"
)

func init() {
	actions.SetHandler(actions.ActionConfigExport, HandleConfigExport)
	actions.SetHandler(actions.ActionConfigImport, HandleConfigImport)
}

// HandleConfigExport writes the document to a file or stdout.
func HandleConfigExport(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	data, name, err := sess.Export(ctx.GetString("format"))
	if err != nil {
		return actions.WrapError(err, err.Error(), "Supported formats: json, yaml")
	}

	out := ctx.GetString("out")
	if out == "-" {
		ctx.Output.Print(string(data))
		return nil
	}
	if out == "" {
		out = name
	}

	// The document carries the private key.
	if err := os.WriteFile(out, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	ctx.Output.Success(fmt.Sprintf("Configuration exported to %s", out))
	return nil
}

// HandleConfigImport replaces the document with a file.
func HandleConfigImport(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	path, err := RequireArg(ctx, "file")
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	beginProgress(ctx, "Import Configuration")
	if err := sess.Import(ctx.Ctx, data); err != nil {
		return failProgress(ctx, actions.WrapError(err, fmt.Sprintf("invalid configuration: %v", err), "Nothing was changed"))
	}
	ctx.Output.Success(fmt.Sprintf("Configuration imported from %s", path))
	ctx.Output.Println(ctx.Output.KV("Public key", sess.Document().PublicKey()))
	reconnectHint(ctx)
	endProgress(ctx)
	return nil
}
