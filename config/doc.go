// Package config defines and loads the catalogmatch application configuration.
//
// Configuration comes from three layers, later layers overriding earlier ones:
// built-in defaults, an optional JSON config file, and CATALOGMATCH_* environment
// variables. Load applies all three and validates the result; components receive
// their sub-config structs by value and never read the environment themselves.
package config
