package middleware

import "github.com/aretw0/waypoint/pkg/ports"

// Middleware allows wrapping a ConfigRepository to add behavior.
type Middleware func(ports.ConfigRepository) ports.ConfigRepository

// AuditMiddleware allows wrapping an AuditLog to add behavior.
type AuditMiddleware func(ports.AuditLog) ports.AuditLog
