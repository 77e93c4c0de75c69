//go:build !linux && !darwin

package tun

func applySettings(string, Settings) error {
	return ErrUnsupported
}

func clearSettings(string, *Settings) error {
	return nil
}
