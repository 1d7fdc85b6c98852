// Package config loads the settings of the webflow command from a YAML file
// and WEBFLOW_* environment variables.
package config
