// Package gate decides what a session may see. It is pure: nothing here
// touches storage or the network, so callers re-evaluate freely after
// every session change.
//
// The gate only governs local rendering. The backend must authorize
// mutations itself.
package gate

import "anoa.com/classboard/internal/entity"

type Surface string

const (
	SurfaceHome           Surface = "home"
	SurfaceLunch          Surface = "lunch"
	SurfaceCommunity      Surface = "community"
	SurfaceGallery        Surface = "gallery"
	SurfaceNotice         Surface = "notice"
	SurfaceCommunityWrite Surface = "community.write"
	SurfaceGalleryWrite   Surface = "gallery.write"
	SurfaceNoticeWrite    Surface = "notice.write"
	SurfaceNoticeProfile  Surface = "notice.profile"
	SurfaceSearch         Surface = "search"
)

type Reason string

const (
	ReasonOpen         Reason = "open"
	ReasonLocked       Reason = "locked"
	ReasonRoleRequired Reason = "role_required"
)

type Decision struct {
	Visible bool   `json:"visible"`
	Reason  Reason `json:"reason"`
}

func (d Decision) Locked() bool {
	return d.Reason == ReasonLocked
}

type rule struct {
	memberOnly   bool
	requiredRole entity.Role
}

var rules = map[Surface]rule{
	SurfaceHome:           {},
	SurfaceLunch:          {},
	SurfaceCommunity:      {memberOnly: true},
	SurfaceGallery:        {memberOnly: true},
	SurfaceNotice:         {memberOnly: true},
	SurfaceCommunityWrite: {memberOnly: true},
	SurfaceGalleryWrite:   {memberOnly: true},
	SurfaceNoticeWrite:    {memberOnly: true, requiredRole: entity.RoleTeacher},
	SurfaceNoticeProfile:  {memberOnly: true, requiredRole: entity.RoleTeacher},
	SurfaceSearch:         {memberOnly: true},
}

// AllSurfaces lists every surface in a stable order.
var AllSurfaces = []Surface{
	SurfaceHome, SurfaceLunch,
	SurfaceCommunity, SurfaceGallery, SurfaceNotice,
	SurfaceCommunityWrite, SurfaceGalleryWrite, SurfaceNoticeWrite,
	SurfaceNoticeProfile, SurfaceSearch,
}

// CanView applies the rules in order: membership first, then role.
// Unknown surfaces are treated as member-only.
func CanView(session entity.Session, surface Surface) Decision {
	r, ok := rules[surface]
	if !ok {
		r = rule{memberOnly: true}
	}

	if r.memberOnly && !session.IsApproved() {
		return Decision{Visible: false, Reason: ReasonLocked}
	}
	if r.requiredRole != "" && session.Role != r.requiredRole {
		return Decision{Visible: false, Reason: ReasonRoleRequired}
	}
	return Decision{Visible: true, Reason: ReasonOpen}
}

// Evaluate computes the decision for every surface.
func Evaluate(session entity.Session) map[Surface]Decision {
	out := make(map[Surface]Decision, len(AllSurfaces))
	for _, s := range AllSurfaces {
		out[s] = CanView(session, s)
	}
	return out
}

// ReadSurface is the surface that shows a board's list and details.
func ReadSurface(c entity.Category) Surface {
	switch c {
	case entity.CategoryCommunity:
		return SurfaceCommunity
	case entity.CategoryGallery:
		return SurfaceGallery
	case entity.CategoryNotice:
		return SurfaceNotice
	}
	return Surface(c.String())
}

// WriteSurface is the authoring affordance of a board.
func WriteSurface(c entity.Category) Surface {
	switch c {
	case entity.CategoryCommunity:
		return SurfaceCommunityWrite
	case entity.CategoryGallery:
		return SurfaceGalleryWrite
	case entity.CategoryNotice:
		return SurfaceNoticeWrite
	}
	return Surface(c.String() + ".write")
}
