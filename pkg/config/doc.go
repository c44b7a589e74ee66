// Package config loads shopdesk configuration.
//
// # Sources
//
// Values are layered, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. An optional YAML file named by SHOPDESK_CONFIG_FILE
//  3. SHOPDESK_* environment variables
//
// The merged result is validated before LoadConfig returns it.
//
// # Environment
//
// Server settings:
//
//	SHOPDESK_HOST="0.0.0.0"
//	SHOPDESK_PORT="8080"
//	SHOPDESK_READ_TIMEOUT="15s"
//	SHOPDESK_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	SHOPDESK_DATABASE_URL="postgres://localhost:5432/shopdesk?sslmode=disable"
//	SHOPDESK_DATABASE_REPLICA_URLS="postgres://replica1/shopdesk,postgres://replica2/shopdesk"
//	SHOPDESK_DATABASE_MAX_CONNS="20"
//	SHOPDESK_DATABASE_AUTO_MIGRATE="true"
//	SHOPDESK_REDIS_URL="redis://localhost:6379/0"  # empty disables cross-instance invalidation
//
// Authentication (at least one verifier is required):
//
//	SHOPDESK_JWT_SECRET="..."  # 32 bytes or more
//	SHOPDESK_JWT_ISSUER="https://id.example.com"
//	SHOPDESK_OIDC_ISSUER_URL="https://accounts.google.com"
//	SHOPDESK_OIDC_CLIENT_ID="shopdesk-web"
//
// Sessions and dashboard:
//
//	SHOPDESK_SESSION_TTL="5m"
//	SHOPDESK_SESSION_MAX_ENTRIES="10000"
//	SHOPDESK_SESSION_SINGLE_FLIGHT="true"
//	SHOPDESK_SESSION_SWEEP_INTERVAL="1m"
//	SHOPDESK_DASHBOARD_SECTION_TIMEOUT="5s"
//
// Observability:
//
//	SHOPDESK_LOG_LEVEL="info"  # debug, info, warn, error
//	SHOPDESK_METRICS_ENABLED="true"
//	SHOPDESK_OTEL_ENABLED="false"
//	SHOPDESK_OTEL_ENDPOINT="localhost:4317"
//	SHOPDESK_OTEL_SAMPLE_RATIO="1"
//
// # File format
//
// The YAML file mirrors the struct layout:
//
//	server:
//	  port: "8080"
//	storage:
//	  database_url: postgres://db:5432/shopdesk
//	auth:
//	  jwt_secret: ...
//	session:
//	  ttl: 5m
//
// Malformed environment values are ignored in favour of the previous layer;
// a malformed file is an error.
package config
