// Package config manages the upnpctl YAML configuration file.
//
// The file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/upnpctl/config.yaml or $HOME/.config/upnpctl/config.yaml
//   - macOS: $HOME/.config/upnpctl/config.yaml
//   - Windows: %LOCALAPPDATA%\upnpctl\config.yaml
//
// A missing file is not an error: Load returns the defaults. Durations are
// written as Go duration strings ("5s", "1m30s"). Command line flags override
// file values; discovered devices are never persisted.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cp := controlpoint.New(cfg.ControlPointConfig())
package config
