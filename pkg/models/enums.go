package models

// ProjectStatus is the lifecycle status of a project.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "DRAFT"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
	ProjectStatusArchived   ProjectStatus = "ARCHIVED"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status transition is allowed.
// Draft → InProgress → Completed; any state → Archived.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	if next == ProjectStatusArchived {
		return true
	}
	switch s {
	case ProjectStatusDraft:
		return next == ProjectStatusInProgress
	case ProjectStatusInProgress:
		return next == ProjectStatusCompleted
	}
	return s == next
}

// DocumentType identifies which stage produced a document and its
// uniqueness shape (plan_epic versions are keyed by epic number).
type DocumentType string

const (
	DocumentTypeAbout        DocumentType = "about"
	DocumentTypeSpecs        DocumentType = "specs"
	DocumentTypeArchitecture DocumentType = "architecture"
	DocumentTypePlanOverview DocumentType = "plan_overview"
	DocumentTypePlanEpic     DocumentType = "plan_epic"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeAbout, DocumentTypeSpecs, DocumentTypeArchitecture,
		DocumentTypePlanOverview, DocumentTypePlanEpic:
		return true
	}
	return false
}

// ExecutionStatus is the lifecycle status of an agent execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final (rows are append-only after it).
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// ExportStatus is the lifecycle status of an export.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "PENDING"
	ExportStatusGenerating ExportStatus = "GENERATING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
	ExportStatusExpired    ExportStatus = "EXPIRED"
)

// Stage identifies one of the four workflow stages.
type Stage int

const (
	StageAnalyst   Stage = 1
	StageStandards Stage = 2
	StageArchitect Stage = 3
	StagePlanner   Stage = 4
)

// StageCount is the number of stages in the full workflow.
const StageCount = 4

// Valid reports whether st is one of the four workflow stages.
func (st Stage) Valid() bool {
	return st >= StageAnalyst && st <= StagePlanner
}

// Name returns the human-readable stage name.
func (st Stage) Name() string {
	switch st {
	case StageAnalyst:
		return "Business Analyst"
	case StageStandards:
		return "Engineering Standards"
	case StageArchitect:
		return "Solution Architect"
	case StagePlanner:
		return "Project Planner"
	}
	return "Unknown"
}

// AgentType returns the machine identifier of the stage's agent.
func (st Stage) AgentType() string {
	switch st {
	case StageAnalyst:
		return "business_analyst"
	case StageStandards:
		return "engineering_standards"
	case StageArchitect:
		return "solution_architect"
	case StagePlanner:
		return "project_planner"
	}
	return "unknown"
}

// DocumentType returns the primary document type the stage produces.
// The planner stage additionally produces plan_epic versions.
func (st Stage) DocumentType() DocumentType {
	switch st {
	case StageAnalyst:
		return DocumentTypeAbout
	case StageStandards:
		return DocumentTypeSpecs
	case StageArchitect:
		return DocumentTypeArchitecture
	case StagePlanner:
		return DocumentTypePlanOverview
	}
	return ""
}

// PriorDocumentType returns the document type whose latest version must
// exist before the stage may start, or "" for the first stage.
func (st Stage) PriorDocumentType() DocumentType {
	switch st {
	case StageStandards:
		return DocumentTypeAbout
	case StageArchitect:
		return DocumentTypeAbout
	case StagePlanner:
		return DocumentTypeArchitecture
	}
	return ""
}
