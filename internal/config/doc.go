// Package config loads notifywatch configuration from YAML.
//
// Values of the form ${VAR} are expanded from the environment before the
// document is parsed, so secrets such as the bearer token can stay out of
// the file:
//
//	realtime:
//	  base_url: https://devhuddle.example.com
//	auth:
//	  token: ${DEVHUDDLE_TOKEN}
//	  subject_id: user-42
package config
