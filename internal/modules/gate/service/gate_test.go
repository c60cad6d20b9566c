package gate

import (
	"testing"

	"anoa.com/classboard/internal/entity"
	"github.com/stretchr/testify/assert"
)

func approved(role entity.Role) entity.Session {
	return entity.Session{Identity: "김민수", Role: role, Approval: entity.ApprovalApproved}
}

func TestPublicSurfacesAlwaysOpen(t *testing.T) {
	sessions := []entity.Session{
		entity.AnonymousSession(),
		{Role: entity.RoleStudent, Approval: entity.ApprovalPending},
		approved(entity.RoleStudent),
	}
	for _, s := range sessions {
		for _, surface := range []Surface{SurfaceHome, SurfaceLunch} {
			assert.Equal(t, Decision{Visible: true, Reason: ReasonOpen}, CanView(s, surface))
		}
	}
}

func TestUnapprovedSessionsAreLocked(t *testing.T) {
	for _, s := range []entity.Session{
		entity.AnonymousSession(),
		{Role: entity.RoleStudent, Approval: entity.ApprovalPending},
		{Role: entity.RoleTeacher, Approval: entity.ApprovalPending},
	} {
		for _, surface := range AllSurfaces {
			if surface == SurfaceHome || surface == SurfaceLunch {
				continue
			}
			d := CanView(s, surface)
			assert.False(t, d.Visible, surface)
			assert.Equal(t, ReasonLocked, d.Reason, surface)
		}
	}
}

func TestStudentCannotWriteNotice(t *testing.T) {
	s := approved(entity.RoleStudent)

	assert.Equal(t, ReasonOpen, CanView(s, SurfaceNotice).Reason)
	assert.Equal(t, ReasonOpen, CanView(s, SurfaceCommunityWrite).Reason)
	assert.Equal(t, ReasonOpen, CanView(s, SurfaceGalleryWrite).Reason)

	d := CanView(s, SurfaceNoticeWrite)
	assert.False(t, d.Visible)
	assert.Equal(t, ReasonRoleRequired, d.Reason)
	assert.Equal(t, ReasonRoleRequired, CanView(s, SurfaceNoticeProfile).Reason)
}

func TestTeacherSeesEverything(t *testing.T) {
	for surface, d := range Evaluate(approved(entity.RoleTeacher)) {
		assert.True(t, d.Visible, surface)
		assert.Equal(t, ReasonOpen, d.Reason, surface)
	}
}

func TestUnknownSurfaceIsMemberOnly(t *testing.T) {
	assert.Equal(t, ReasonLocked, CanView(entity.AnonymousSession(), Surface("bogus")).Reason)
	assert.Equal(t, ReasonOpen, CanView(approved(entity.RoleStudent), Surface("bogus")).Reason)
}

func TestCategorySurfaces(t *testing.T) {
	assert.Equal(t, SurfaceNotice, ReadSurface(entity.CategoryNotice))
	assert.Equal(t, SurfaceNoticeWrite, WriteSurface(entity.CategoryNotice))
	assert.Equal(t, SurfaceGallery, ReadSurface(entity.CategoryGallery))
	assert.Equal(t, SurfaceGalleryWrite, WriteSurface(entity.CategoryGallery))
	assert.Equal(t, SurfaceCommunity, ReadSurface(entity.CategoryCommunity))
	assert.Equal(t, SurfaceCommunityWrite, WriteSurface(entity.CategoryCommunity))
}
