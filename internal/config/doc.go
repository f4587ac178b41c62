// Package config defines the configuration of the Box MCP server and how
// it is loaded.
//
// A single *Config is built at startup from defaults, an optional YAML file,
// a .env file and the environment, then adjusted by command line flags.
// Normalize must run before the value is handed to the rest of the server:
// it applies the transport and auth-mode combinations the server relies on.
//
//	cfg, err := config.Load(configFile)
//	if err != nil {
//	    return err
//	}
//	for _, o := range cfg.Normalize() {
//	    zap.L().Warn(o.Reason, zap.String("from", o.From), zap.String("to", o.To))
//	}
package config
