package model

// Metadata is the structured result of the extraction call. Every field is
// drawn from a fixed enumeration so the scoring lookup tables stay total.
type Metadata struct {
	Seniority      string `json:"seniority"`
	RemoteEligible bool   `json:"remote_eligible"`
	InterviewStyle string `json:"interview_style"`
	RoleType       string `json:"role_type"`
}

// Seniority levels the extraction service may return.
const (
	SeniorityIntern  = "intern"
	SeniorityJunior  = "junior"
	SeniorityMid     = "mid"
	SenioritySenior  = "senior"
	SeniorityStaff   = "staff"
	SeniorityLead    = "lead"
	SeniorityUnknown = "unknown"
)

// Interview styles the extraction service may return.
const (
	InterviewPractical = "practical"
	InterviewLeetcode  = "leetcode"
	InterviewTakeHome  = "take_home"
	InterviewUnknown   = "unknown"
)

// Role types the extraction service may return.
const (
	RoleBackend   = "backend"
	RoleFrontend  = "frontend"
	RoleFullstack = "fullstack"
	RolePlatform  = "platform"
	RoleData      = "data"
	RoleOther     = "other"
)

// Seniorities lists every valid seniority value, in ascending order of level.
func Seniorities() []string {
	return []string{SeniorityIntern, SeniorityJunior, SeniorityMid, SenioritySenior, SeniorityStaff, SeniorityLead, SeniorityUnknown}
}

// InterviewStyles lists every valid interview style value.
func InterviewStyles() []string {
	return []string{InterviewPractical, InterviewLeetcode, InterviewTakeHome, InterviewUnknown}
}

// RoleTypes lists every valid role type value.
func RoleTypes() []string {
	return []string{RoleBackend, RoleFrontend, RoleFullstack, RolePlatform, RoleData, RoleOther}
}

// DefaultMetadata is the conservative fallback used when extraction fails.
// Records scored from it are flagged so a later rescore can redo them.
func DefaultMetadata() Metadata {
	return Metadata{
		Seniority:      SeniorityUnknown,
		RemoteEligible: false,
		InterviewStyle: InterviewUnknown,
		RoleType:       RoleOther,
	}
}
