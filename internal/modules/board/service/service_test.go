package board

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/gateway"
	"anoa.com/classboard/internal/modules/board/dto"
	events "anoa.com/classboard/internal/modules/events/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/apperror"
	"anoa.com/classboard/pkg/kvstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu      sync.Mutex
	lists   map[entity.Category][]entity.BoardItem
	fetches int
	sent    []gateway.Submission
	// release, when set, blocks Submit until it is closed.
	release   chan struct{}
	submitErr error
}

func newBackend() *fakeBackend {
	return &fakeBackend{lists: map[entity.Category][]entity.BoardItem{}}
}

func (b *fakeBackend) List(ctx context.Context, c entity.Category) ([]entity.BoardItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	out := make([]entity.BoardItem, len(b.lists[c]))
	copy(out, b.lists[c])
	return out, nil
}

func (b *fakeBackend) Submit(ctx context.Context, sub gateway.Submission) error {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return b.submitErr
	}
	b.sent = append(b.sent, sub)
	item := entity.BoardItem{Category: sub.Category, Title: sub.Title, Body: sub.Body, Author: sub.Author, CreatedAt: day}
	item.ID = item.DeriveID()
	b.lists[sub.Category] = append([]entity.BoardItem{item}, b.lists[sub.Category]...)
	return nil
}

func (b *fakeBackend) seed(c entity.Category, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]entity.BoardItem, n)
	for i := range items {
		items[i] = entity.BoardItem{
			Category:  c,
			Title:     fmt.Sprintf("%s %02d", c, i),
			Body:      "본문",
			Author:    "민수",
			CreatedAt: day.Add(-time.Duration(i) * time.Hour),
		}
		items[i].ID = fmt.Sprintf("%s-%02d", c, i)
	}
	b.lists[c] = items
}

func (b *fakeBackend) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

type fixedProfile string

func (p fixedProfile) ProfileImageURL(context.Context) string { return string(p) }

type fixture struct {
	svc     *boardService
	backend *fakeBackend
	hub     events.Hub
	mr      *miniredis.Miniredis
	ws      *workspace.Workspace
}

func newFixture(t *testing.T, sess entity.Session) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := newBackend()
	hub := events.NewMemoryHub()
	svc := NewBoardService(backend, rdb, hub, fixedProfile("https://cdn.test/teacher.png"), 5*time.Second, 1024).(*boardService)
	svc.now = func() time.Time { return day.Add(12 * time.Hour) }

	ws, err := workspace.New(ctx, "dev-1", workspace.Deps{Store: kvstore.NewMemoryStore(), Fetcher: backend})
	require.NoError(t, err)
	if sess.IsAuthenticated() {
		require.NoError(t, ws.Session.SignIn(ctx, sess))
	}
	return &fixture{svc: svc, backend: backend, hub: hub, mr: mr, ws: ws}
}

func student() entity.Session {
	return entity.Session{Identity: "김민수", StudentID: "1213", Role: entity.RoleStudent, Approval: entity.ApprovalApproved}
}

func teacher() entity.Session {
	return entity.Session{Identity: "박선생님", StudentID: "9001", Role: entity.RoleTeacher, Approval: entity.ApprovalApproved}
}

func cardIDs(v *dto.BoardView) []string {
	var out []string
	for _, c := range cardsOf(v) {
		out = append(out, c.ID)
	}
	return out
}

func TestNavigatePagesAndRemembersCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryCommunity, 12)

	v, err := f.svc.Navigate(ctx, f.ws, entity.CategoryCommunity, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"community-05", "community-06", "community-07", "community-08", "community-09"}, cardIDs(v))
	assert.Equal(t, []int{1, 2, 3}, v.Page.Controls.Pages)

	v, err = f.svc.Navigate(ctx, f.ws, entity.CategoryCommunity, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page.Controls.Current)
	assert.Equal(t, 1, f.backend.fetchCount())
}

func TestNavigateLockedSkipsFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, entity.AnonymousSession())
	f.backend.seed(entity.CategoryNotice, 3)

	v, err := f.svc.Navigate(ctx, f.ws, entity.CategoryNotice, 1)
	require.NoError(t, err)
	assert.True(t, v.Page.Locked)
	assert.Len(t, v.Page.Cards, 5)
	assert.Empty(t, v.ProfileImageURL)
	assert.Zero(t, f.backend.fetchCount())
}

func TestNoticeShowsProfileImage(t *testing.T) {
	f := newFixture(t, student())
	v, err := f.svc.Navigate(context.Background(), f.ws, entity.CategoryNotice, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/teacher.png", v.ProfileImageURL)
	assert.False(t, v.WriteDecision.Visible)
}

func TestSubmitIsOptimistic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryCommunity, 3)
	f.backend.release = make(chan struct{})

	stream, cancel, err := f.hub.Subscribe(ctx, "dev-1")
	require.NoError(t, err)
	defer cancel()

	_, err = f.svc.Navigate(ctx, f.ws, entity.CategoryCommunity, 1)
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "새 글", Body: "안녕하세요"})
	require.NoError(t, err)

	// The backend has not answered yet.
	assert.True(t, res.Item.Fresh)
	assert.Equal(t, "새 글", res.Item.Title)
	first := f.ws.Cache.Items(entity.CategoryCommunity)[0]
	assert.True(t, first.Fresh)
	assert.Equal(t, "김민수", first.Author)
	assert.Len(t, cardsOf(res.View), 4)

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "두 번째", Body: "x"})
	assert.ErrorIs(t, err, apperror.ErrSubmissionInFlight)

	close(f.backend.release)
	f.svc.wg.Wait()

	items := f.ws.Cache.Items(entity.CategoryCommunity)
	require.Len(t, items, 4)
	for _, it := range items {
		assert.False(t, it.Fresh)
	}
	assert.Equal(t, "새 글", items[0].Title)

	select {
	case ev := <-stream:
		assert.Equal(t, events.TypeSubmitSucceeded, ev.Type)
		assert.Equal(t, "community", ev.Category)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestSubmitFailureKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.submitErr = apperror.ErrNetwork

	stream, cancel, err := f.hub.Subscribe(ctx, "dev-1")
	require.NoError(t, err)
	defer cancel()

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "실패할 글", Body: "x"})
	require.NoError(t, err)
	f.svc.wg.Wait()

	select {
	case ev := <-stream:
		assert.Equal(t, events.TypeSubmitFailed, ev.Type)
		assert.Equal(t, "글 전송에 실패했습니다. (인터넷 확인 필요)", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	items := f.ws.Cache.Items(entity.CategoryCommunity)
	require.Len(t, items, 1)
	assert.True(t, items[0].Fresh)

	// The cooldown was rolled back, so a retry goes through at once.
	f.backend.submitErr = nil
	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "다시", Body: "x"})
	require.NoError(t, err)
	f.svc.wg.Wait()
}

func TestSubmitCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())

	_, err := f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "하나", Body: "x"})
	require.NoError(t, err)
	f.svc.wg.Wait()

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "둘", Body: "x"})
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Contains(t, apperror.UserMessage(err), "초 후에")

	f.mr.FastForward(6 * time.Second)
	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "셋", Body: "x"})
	require.NoError(t, err)
	f.svc.wg.Wait()
}

func TestSubmitGatesAndValidation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, student())
	_, err := f.svc.Submit(ctx, f.ws, entity.CategoryNotice, dto.SubmitRequest{Title: "공지", Body: "x"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, 403, apperror.MapErrorToStatus(err))

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: strings.Repeat("a", 31), Body: "x"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "제목", Body: "  "})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Empty(t, f.ws.Cache.Items(entity.CategoryCommunity))

	anon := newFixture(t, entity.AnonymousSession())
	_, err = anon.svc.Submit(ctx, anon.ws, entity.CategoryCommunity, dto.SubmitRequest{Title: "제목", Body: "x"})
	assert.ErrorIs(t, err, apperror.ErrLocked)

	tf := newFixture(t, teacher())
	_, err = tf.svc.Submit(ctx, tf.ws, entity.CategoryNotice, dto.SubmitRequest{Title: "공지", Body: "내일 소풍"})
	require.NoError(t, err)
	tf.svc.wg.Wait()
	assert.Equal(t, "박선생님", tf.backend.sent[0].Author)
}

func TestGallerySubmitImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.release = make(chan struct{})
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake image"))

	res, err := f.svc.Submit(ctx, f.ws, entity.CategoryGallery, dto.SubmitRequest{Title: "소풍", Image: "data:image/png;base64," + png})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+png, res.Item.ImageURL)
	require.NotNil(t, res.View.Chunk)

	close(f.backend.release)
	f.svc.wg.Wait()
	require.Len(t, f.backend.sent, 1)
	assert.Equal(t, "image/png", f.backend.sent[0].Image.MimeType)
	assert.Equal(t, png, f.backend.sent[0].Image.Data)

	big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryGallery, dto.SubmitRequest{Title: "큰 사진", Image: big, MimeType: "image/jpeg"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryGallery, dto.SubmitRequest{Title: "문서", Image: png, MimeType: "application/pdf"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.Submit(ctx, f.ws, entity.CategoryGallery, dto.SubmitRequest{Title: "사진 없음"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestGalleryRevealAndReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryGallery, 30)

	v, err := f.svc.Navigate(ctx, f.ws, entity.CategoryGallery, 0)
	require.NoError(t, err)
	seen := cardIDs(v)
	assert.Len(t, seen, 12)

	for i := 0; i < 3; i++ {
		v, err = f.svc.RevealMore(ctx, f.ws, entity.CategoryGallery)
		require.NoError(t, err)
		seen = append(seen, cardIDs(v)...)
	}
	require.Len(t, seen, 30)
	for i, id := range seen {
		assert.Equal(t, fmt.Sprintf("gallery-%02d", i), id)
	}
	assert.False(t, v.Chunk.HasMore)

	v, err = f.svc.Navigate(ctx, f.ws, entity.CategoryGallery, 0)
	require.NoError(t, err)
	assert.Equal(t, "gallery-00", cardIDs(v)[0])
	assert.Equal(t, 12, f.ws.Revealed())

	_, err = f.svc.RevealMore(ctx, f.ws, entity.CategoryCommunity)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestReloadResetsCursorAndDropsLocalItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryCommunity, 12)

	_, err := f.svc.Navigate(ctx, f.ws, entity.CategoryCommunity, 3)
	require.NoError(t, err)
	f.ws.Cache.InsertOptimistic(entity.CategoryCommunity, entity.BoardItem{Title: "로컬"})

	v, err := f.svc.Reload(ctx, f.ws, entity.CategoryCommunity)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page.Controls.Current)
	assert.Equal(t, "community-00", cardIDs(v)[0])
	assert.Equal(t, 12, v.Page.Total)
}

func TestDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryNotice, 2)
	_, err := f.svc.Navigate(ctx, f.ws, entity.CategoryNotice, 1)
	require.NoError(t, err)

	d, err := f.svc.Detail(ctx, f.ws, entity.CategoryNotice, 1)
	require.NoError(t, err)
	assert.Equal(t, "notice 01", d.Title)

	_, err = f.svc.Detail(ctx, f.ws, entity.CategoryNotice, 5)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.ws.Session.SignOut(ctx))
	_, err = f.svc.Detail(ctx, f.ws, entity.CategoryNotice, 1)
	assert.True(t, errors.Is(err, apperror.ErrLocked))
}

func TestUnread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, student())
	f.backend.seed(entity.CategoryCommunity, 2)

	_, err := f.svc.Reload(ctx, f.ws, entity.CategoryCommunity)
	require.NoError(t, err)
	assert.True(t, f.svc.Unread(ctx, f.ws)["community"])
	assert.False(t, f.svc.Unread(ctx, f.ws)["notice"])

	_, err = f.svc.Navigate(ctx, f.ws, entity.CategoryCommunity, 1)
	require.NoError(t, err)
	assert.False(t, f.svc.Unread(ctx, f.ws)["community"])

	f.backend.mu.Lock()
	f.backend.lists[entity.CategoryCommunity] = append([]entity.BoardItem{{
		ID: "late", Category: entity.CategoryCommunity, Title: "늦은 글", CreatedAt: day.Add(13 * time.Hour),
	}}, f.backend.lists[entity.CategoryCommunity]...)
	f.backend.mu.Unlock()
	require.NoError(t, f.ws.Cache.Reload(ctx, entity.CategoryCommunity))
	assert.True(t, f.svc.Unread(ctx, f.ws)["community"])

	require.NoError(t, f.ws.Session.SignOut(ctx))
	assert.False(t, f.svc.Unread(ctx, f.ws)["community"])
}
