// Package config provides configuration loading for the neora client.
//
// # Configuration Format
//
// Configuration is loaded from a YAML file:
//
//	server:
//	  api_base_url: https://neora.example.com/api
//	  stream_url: wss://neora.example.com/ws/stream
//
//	chat:
//	  response_timeout: 30s
//	  min_display_target: 2s
//	  min_display_floor: 500ms
//	  history_limit: 50
//
//	stream:
//	  reconnect_delay: 3s
//
//	history:
//	  path: ~/.config/neora/history.db
//
//	logging:
//	  level: info
//	  format: text
//
// # Environment Variable Expansion
//
// Values may reference environment variables with ${VAR_NAME} syntax;
// unset variables expand to an empty string:
//
//	server:
//	  api_base_url: ${NEORA_API_URL}
//
// # Duration Fields
//
// Timing fields accept Go duration strings ("30s", "500ms", "2s"). Absent
// fields fall back to the package defaults.
package config
