package entity

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

type ApprovalStatus string

const (
	ApprovalUnauthenticated ApprovalStatus = "unauthenticated"
	ApprovalPending         ApprovalStatus = "pending"
	ApprovalApproved        ApprovalStatus = "approved"
)

// Session is the identity a device acts as. The zero value is not valid;
// use AnonymousSession.
type Session struct {
	Identity   string         `json:"identity,omitempty"`
	StudentID  string         `json:"student_id,omitempty"`
	Role       Role           `json:"role"`
	Approval   ApprovalStatus `json:"approval_status"`
	SignedInAt time.Time      `json:"signed_in_at,omitzero"`
}

func AnonymousSession() Session {
	return Session{Role: RoleStudent, Approval: ApprovalUnauthenticated}
}

func (s Session) IsApproved() bool {
	return s.Approval == ApprovalApproved
}

func (s Session) IsTeacher() bool {
	return s.Role == RoleTeacher
}

func (s Session) IsAuthenticated() bool {
	return s.Approval != "" && s.Approval != ApprovalUnauthenticated
}

// Normalize fills defaults for fields an older stored session may lack.
func (s Session) Normalize() Session {
	if s.Role != RoleTeacher {
		s.Role = RoleStudent
	}
	switch s.Approval {
	case ApprovalPending, ApprovalApproved:
	default:
		s.Approval = ApprovalUnauthenticated
	}
	return s
}
