// Package config handles loading and validating the factoryd service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (FACTORYD_*)
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// The service configuration is read once at startup. The factory document
// it points to is a separate file handled by the blueprint package and
// reloaded at runtime.
//
// Security Considerations:
//   - The client secret and broker credentials should come from the environment
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/factoryd.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Factory.Document)
package config
