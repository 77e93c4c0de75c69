package handlers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/session"
)

func init() {
	actions.SetHandler(actions.ActionConfigEdit, HandleConfigEdit)
}

// HandleConfigEdit exports the document to a scratch file, opens it in an
// editor and imports the result when the editor exits.
func HandleConfigEdit(ctx *actions.Context) error {
	sess, err := LoadSession(ctx)
	if err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "nano"
	}

	data, name, err := sess.Export(session.FormatJSON)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "meshtun-edit-")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write scratch file: %w", err)
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read edited file: %w", err)
	}
	if string(edited) == string(data) {
		ctx.Output.Info("No changes")
		return nil
	}

	if err := sess.Import(ctx.Ctx, edited); err != nil {
		return actions.WrapError(err, fmt.Sprintf("edited configuration rejected: %v", err), "Nothing was changed")
	}
	ctx.Output.Success("Configuration saved")
	reconnectHint(ctx)
	return nil
}
