package auth

// Permission is one grantable capability. The enumeration is fixed;
// roles map to permission sets seeded per tenant on first use.
type Permission string

const (
	PermProjectRead     Permission = "PROJECT_READ"
	PermProjectWrite    Permission = "PROJECT_WRITE"
	PermProjectDelete   Permission = "PROJECT_DELETE"
	PermProjectAdmin    Permission = "PROJECT_ADMIN"
	PermDocumentRead    Permission = "DOCUMENT_READ"
	PermDocumentWrite   Permission = "DOCUMENT_WRITE"
	PermDocumentDelete  Permission = "DOCUMENT_DELETE"
	PermAgentExecute    Permission = "AGENT_EXECUTE"
	PermAgentRead       Permission = "AGENT_READ"
	PermAnalyticsRead   Permission = "ANALYTICS_READ"
	PermExportDocuments Permission = "EXPORT_DOCUMENTS"
)

// Role names seeded for every tenant.
const (
	RoleOwner  = "OWNER"
	RoleEditor = "EDITOR"
	RoleViewer = "VIEWER"
)

// AllPermissions is every defined permission, granted to OWNER.
var AllPermissions = []Permission{
	PermProjectRead, PermProjectWrite, PermProjectDelete, PermProjectAdmin,
	PermDocumentRead, PermDocumentWrite, PermDocumentDelete,
	PermAgentExecute, PermAgentRead,
	PermAnalyticsRead, PermExportDocuments,
}

// RolePermissions is the fixed role → permission mapping.
// OWNER gets everything; EDITOR gets read/write plus agent execution;
// VIEWER is read-only.
var RolePermissions = map[string][]Permission{
	RoleOwner: AllPermissions,
	RoleEditor: {
		PermProjectRead, PermProjectWrite,
		PermDocumentRead, PermDocumentWrite,
		PermAgentExecute, PermAgentRead,
		PermExportDocuments,
	},
	RoleViewer: {
		PermProjectRead, PermDocumentRead, PermAgentRead,
	},
}

// HasPermission reports whether the granted set carries p.
func HasPermission(granted []Permission, p Permission) bool {
	for _, g := range granted {
		if g == p {
			return true
		}
	}
	return false
}
