package domain

// Field constants shared by mapstructure, JSON and YAML codecs.
const (
	// KeyTenant is the attribute/header name used to scope requests to a tenant.
	KeyTenant = "tenant_id"

	// KeyActor identifies who triggered a mutation in audit records and history entries.
	KeyActor = "triggered_by"

	// SystemActor is recorded when no caller identity is available.
	SystemActor = "system"
)
