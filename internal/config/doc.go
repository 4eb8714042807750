// Package config provides the configuration of a skycrawl run.
//
// Settings come from four layers, each overriding the previous one:
// built-in defaults (NewConfig), the YAML file found by FindConfigFile,
// the ATP_* environment variables (ApplyEnv) and command line flags.
// The file can also carry per-root overrides of the crawl settings.
package config
