package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategoryAcceptsHistoricalSpellings(t *testing.T) {
	cases := map[string]Category{
		"community": CategoryCommunity,
		"Community": CategoryCommunity,
		"Post":      CategoryCommunity,
		"notice":    CategoryNotice,
		"NOTICE":    CategoryNotice,
		" gallery ": CategoryGallery,
		"Gallery":   CategoryGallery,
	}
	for in, want := range cases {
		got, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCategory("menfess")
	assert.Error(t, err)
}

func TestCategoryCanonicalMapping(t *testing.T) {
	assert.Equal(t, "community", CategoryCommunity.String())
	assert.Equal(t, "Community", CategoryCommunity.ListParam())
	assert.Equal(t, "Post", CategoryCommunity.LegacyType())
	assert.Equal(t, PagingFixed, CategoryNotice.Paging())
	assert.Equal(t, PagingIncremental, CategoryGallery.Paging())
	assert.Equal(t, "last_read:gallery", CategoryGallery.StorageKey("last_read"))
	assert.False(t, Category(42).Valid())
}

func TestCategoryJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		C Category `json:"c"`
	}{CategoryNotice})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"notice"}`, string(b))

	var out struct {
		C Category `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"Post"}`), &out))
	assert.Equal(t, CategoryCommunity, out.C)
}

func TestDeriveIDIsStable(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	a := BoardItem{Category: CategoryCommunity, Title: "안녕", Author: "민수", CreatedAt: at}
	b := a
	b.Body = "different body"
	assert.Equal(t, a.DeriveID(), b.DeriveID())

	c := a
	c.Category = CategoryNotice
	assert.NotEqual(t, a.DeriveID(), c.DeriveID())
}

func TestSessionNormalize(t *testing.T) {
	s := Session{Role: "admin", Approval: "weird"}.Normalize()
	assert.Equal(t, RoleStudent, s.Role)
	assert.Equal(t, ApprovalUnauthenticated, s.Approval)
	assert.False(t, s.IsAuthenticated())

	assert.True(t, Session{Role: RoleTeacher, Approval: ApprovalApproved}.Normalize().IsTeacher())
}
