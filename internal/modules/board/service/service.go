package board

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/gateway"
	"anoa.com/classboard/internal/modules/board/dto"
	"anoa.com/classboard/internal/modules/board/render"
	events "anoa.com/classboard/internal/modules/events/service"
	gate "anoa.com/classboard/internal/modules/gate/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/apperror"
	"anoa.com/classboard/pkg/ratelimiter"
	"anoa.com/classboard/pkg/validator"
	"github.com/redis/go-redis/v9"
)

const (
	msgSending      = "글을 등록하고 있습니다."
	msgSubmitted    = "글이 등록되었습니다."
	msgSubmitFailed = "글 전송에 실패했습니다. (인터넷 확인 필요)"
	msgRoleRequired = "선생님만 이용할 수 있습니다."
	msgBadImage     = "이미지 형식이 올바르지 않습니다."

	submitTimeout = 60 * time.Second
)

type Submitter interface {
	Submit(ctx context.Context, sub gateway.Submission) error
}

type Publisher interface {
	Publish(ctx context.Context, deviceID string, ev events.Event) error
}

// ProfileImages supplies the picture shown on the notice board.
type ProfileImages interface {
	ProfileImageURL(ctx context.Context) string
}

type BoardService interface {
	// Navigate opens a board. Fixed-page boards show the given page (or
	// the current one when page < 1); the gallery restarts from its first
	// chunk.
	Navigate(ctx context.Context, ws *workspace.Workspace, category entity.Category, page int) (*dto.BoardView, error)
	RevealMore(ctx context.Context, ws *workspace.Workspace, category entity.Category) (*dto.BoardView, error)
	Detail(ctx context.Context, ws *workspace.Workspace, category entity.Category, index int) (*render.Detail, error)
	Reload(ctx context.Context, ws *workspace.Workspace, category entity.Category) (*dto.BoardView, error)
	Submit(ctx context.Context, ws *workspace.Workspace, category entity.Category, req dto.SubmitRequest) (*dto.SubmitResponse, error)
	Unread(ctx context.Context, ws *workspace.Workspace) map[string]bool
}

type boardService struct {
	gw            Submitter
	redisClient   *redis.Client
	publisher     Publisher
	profiles      ProfileImages
	cooldown      time.Duration
	maxImageBytes int
	now           func() time.Time

	wg sync.WaitGroup
}

func NewBoardService(gw Submitter, redisClient *redis.Client, publisher Publisher, profiles ProfileImages, cooldown time.Duration, maxImageBytes int) BoardService {
	return &boardService{
		gw:            gw,
		redisClient:   redisClient,
		publisher:     publisher,
		profiles:      profiles,
		cooldown:      cooldown,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

func (s *boardService) Navigate(ctx context.Context, ws *workspace.Workspace, category entity.Category, page int) (*dto.BoardView, error) {
	decision := gate.CanView(ws.Session.Current(), gate.ReadSurface(category))

	if decision.Visible {
		// A failed load is shown as a placeholder, not returned.
		_ = ws.Cache.EnsureLoaded(ctx, category)
		if err := ws.Repo.MarkRead(ctx, category, s.now()); err != nil {
			log.Printf("[board] mark %s read: %v", category, err)
		}
	}

	if category.Paging() == entity.PagingIncremental {
		ws.SetRevealed(0)
		return s.revealView(ctx, ws, category), nil
	}
	if page < 1 {
		page = ws.Page(category)
	}
	return s.pageView(ctx, ws, category, page), nil
}

func (s *boardService) RevealMore(ctx context.Context, ws *workspace.Workspace, category entity.Category) (*dto.BoardView, error) {
	if category.Paging() != entity.PagingIncremental {
		return nil, apperror.Wrap(apperror.ErrBadRequest, fmt.Sprintf("%s 게시판은 페이지로 이동합니다.", category))
	}
	return s.revealView(ctx, ws, category), nil
}

func (s *boardService) Detail(ctx context.Context, ws *workspace.Workspace, category entity.Category, index int) (*render.Detail, error) {
	decision := gate.CanView(ws.Session.Current(), gate.ReadSurface(category))
	if !decision.Visible {
		return nil, refusal(decision)
	}

	items := ws.Cache.Items(category)
	if index < 0 || index >= len(items) {
		return nil, apperror.Wrap(apperror.ErrNotFound, "글을 찾을 수 없습니다.")
	}
	d, err := render.RenderDetail(items[index], index, decision)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Reload refetches a board and puts its cursor back to the start. The
// fresh list replaces locally created items.
func (s *boardService) Reload(ctx context.Context, ws *workspace.Workspace, category entity.Category) (*dto.BoardView, error) {
	decision := gate.CanView(ws.Session.Current(), gate.ReadSurface(category))
	if decision.Visible {
		_ = ws.Cache.Reload(ctx, category)
	}

	if category.Paging() == entity.PagingIncremental {
		ws.SetRevealed(0)
		return s.revealView(ctx, ws, category), nil
	}
	return s.pageView(ctx, ws, category, 1), nil
}

// Submit validates and gates a new item, shows it at the front of the
// board immediately and sends it to the backend in the background. A
// successful send reloads the board; a failed one publishes
// submit_failed and leaves the local copy until the next reload.
func (s *boardService) Submit(ctx context.Context, ws *workspace.Workspace, category entity.Category, req dto.SubmitRequest) (*dto.SubmitResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	sub, imageURL, err := s.validate(category, req)
	if err != nil {
		return nil, err
	}

	sess := ws.Session.Current()
	if decision := gate.CanView(sess, gate.WriteSurface(category)); !decision.Visible {
		return nil, refusal(decision)
	}

	if !ws.BeginSubmit(category) {
		return nil, apperror.ErrSubmissionInFlight
	}

	subject := sess.StudentID
	if subject == "" {
		subject = ws.ID
	}
	action := "submit:" + category.String()
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, subject, action, s.cooldown)
	if err != nil {
		// Fail open when redis is unavailable.
		log.Printf("[board] cooldown check for %s: %v", subject, err)
		allowed = true
	}
	if !allowed {
		ws.EndSubmit(category)
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, subject, action)
		return nil, apperror.Wrap(apperror.ErrRateLimitExceeded, cooldownMessage(ttl))
	}

	author := sess.Identity
	if author == "" {
		author = entity.AnonymousAuthor
	}
	sub.Author = author

	stored := ws.Cache.InsertOptimistic(category, entity.BoardItem{
		Title:     sub.Title,
		Body:      sub.Body,
		ImageURL:  imageURL,
		Author:    author,
		CreatedAt: s.now(),
	})

	s.wg.Add(1)
	go s.send(ws, sub, subject, action)

	var view *dto.BoardView
	if category.Paging() == entity.PagingIncremental {
		ws.SetRevealed(0)
		view = s.revealView(ctx, ws, category)
	} else {
		view = s.pageView(ctx, ws, category, 1)
	}

	card := render.Card{}
	if cards := cardsOf(view); len(cards) > 0 {
		card = cards[0]
	}
	if card.ID != stored.ID {
		card = render.Card{Index: 0, ID: stored.ID, Title: render.PlainText(stored.Title), Fresh: true}
	}
	return &dto.SubmitResponse{Message: msgSending, Item: card, View: view}, nil
}

func (s *boardService) send(ws *workspace.Workspace, sub gateway.Submission, subject, action string) {
	defer s.wg.Done()
	defer ws.EndSubmit(sub.Category)

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if err := s.gw.Submit(ctx, sub); err != nil {
		log.Printf("❌ Submit to %s failed for %s: %v", sub.Category, ws.ID, err)
		if err := ratelimiter.ClearRateLimit(ctx, s.redisClient, subject, action); err != nil {
			log.Printf("[board] roll back cooldown: %v", err)
		}
		s.publish(ctx, ws.ID, events.Event{Type: events.TypeSubmitFailed, Category: sub.Category.String(), Message: msgSubmitFailed})
		return
	}

	if err := ws.Cache.Reload(ctx, sub.Category); err != nil {
		log.Printf("[board] reload after submit: %v", err)
	}
	if sub.Category.Paging() == entity.PagingIncremental {
		ws.SetRevealed(0)
	} else {
		ws.SetPage(sub.Category, 1)
	}
	s.publish(ctx, ws.ID, events.Event{Type: events.TypeSubmitSucceeded, Category: sub.Category.String(), Message: msgSubmitted})
}

// Unread reports, per visible board, whether any cached item is newer
// than the device's last visit. Boards that have not loaded yet are never
// unread.
func (s *boardService) Unread(ctx context.Context, ws *workspace.Workspace) map[string]bool {
	sess := ws.Session.Current()
	out := make(map[string]bool, len(entity.AllCategories))
	for _, c := range entity.AllCategories {
		out[c.String()] = false
		if !gate.CanView(sess, gate.ReadSurface(c)).Visible {
			continue
		}
		last, err := ws.Repo.LastRead(ctx, c)
		if err != nil {
			log.Printf("[board] read last visit of %s: %v", c, err)
			continue
		}
		for _, it := range ws.Cache.Items(c) {
			if !it.Fresh && it.CreatedAt.After(last) {
				out[c.String()] = true
				break
			}
		}
	}
	return out
}

func (s *boardService) pageView(ctx context.Context, ws *workspace.Workspace, category entity.Category, page int) *dto.BoardView {
	view := s.baseView(ctx, ws, category)
	state := ws.Cache.State(category)
	page = render.ClampPage(page, len(state.Items))
	ws.SetPage(category, page)

	p := render.RenderPage(category, state, page, view.Decision)
	view.Page = &p
	return view
}

func (s *boardService) revealView(ctx context.Context, ws *workspace.Workspace, category entity.Category) *dto.BoardView {
	view := s.baseView(ctx, ws, category)
	state := ws.Cache.State(category)

	var chunk render.Chunk
	ws.UpdateRevealed(func(revealed int) int {
		chunk = render.RevealNext(category, state, revealed, view.Decision)
		return chunk.Revealed
	})
	view.Chunk = &chunk
	return view
}

func (s *boardService) baseView(ctx context.Context, ws *workspace.Workspace, category entity.Category) *dto.BoardView {
	sess := ws.Session.Current()
	view := &dto.BoardView{
		Category:      category.String(),
		Decision:      gate.CanView(sess, gate.ReadSurface(category)),
		WriteDecision: gate.CanView(sess, gate.WriteSurface(category)),
	}
	if category == entity.CategoryNotice && view.Decision.Visible && s.profiles != nil {
		view.ProfileImageURL = s.profiles.ProfileImageURL(ctx)
	}
	return view
}

func (s *boardService) validate(category entity.Category, req dto.SubmitRequest) (gateway.Submission, string, error) {
	if err := validator.Check(req); err != nil {
		return gateway.Submission{}, "", err
	}
	sub := gateway.Submission{Category: category, Title: req.Title, Body: req.Body}

	if category != entity.CategoryGallery {
		if strings.TrimSpace(req.Body) == "" {
			return sub, "", apperror.New(http.StatusBadRequest, "내용을(를) 입력해주세요.", apperror.ErrInvalidInput)
		}
		return sub, "", nil
	}

	img, dataURL, err := decodeImage(req.Image, req.MimeType, s.maxImageBytes)
	if err != nil {
		return sub, "", err
	}
	sub.Image = img
	return sub, dataURL, nil
}

// decodeImage accepts bare base64 or a data URL and returns the gateway
// payload plus a data URL for the local copy.
func decodeImage(raw, mimeType string, limit int) (*gateway.Image, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", apperror.New(http.StatusBadRequest, "이미지을(를) 입력해주세요.", apperror.ErrInvalidInput)
	}
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", apperror.New(http.StatusBadRequest, msgBadImage, apperror.ErrInvalidInput)
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		raw = data
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", apperror.New(http.StatusBadRequest, msgBadImage, apperror.ErrInvalidInput)
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", apperror.New(http.StatusBadRequest, msgBadImage, apperror.ErrInvalidInput)
	}
	if limit > 0 && len(decoded) > limit {
		return nil, "", apperror.New(http.StatusBadRequest,
			fmt.Sprintf("이미지는 %dMB 이하만 올릴 수 있습니다.", limit/(1024*1024)), apperror.ErrInvalidInput)
	}

	return &gateway.Image{MimeType: mimeType, Data: raw}, "data:" + mimeType + ";base64," + raw, nil
}

func (s *boardService) publish(ctx context.Context, deviceID string, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.publisher.Publish(ctx, deviceID, ev); err != nil {
		log.Printf("[board] publish %s to %s: %v", ev.Type, deviceID, err)
	}
}

func refusal(d gate.Decision) error {
	if d.Reason == gate.ReasonRoleRequired {
		return apperror.New(http.StatusForbidden, msgRoleRequired, apperror.ErrForbidden)
	}
	return apperror.ErrLocked
}

func cooldownMessage(ttl time.Duration) string {
	secs := int(ttl.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("너무 자주 글을 올리고 있습니다. %d초 후에 다시 시도해주세요.", secs)
}

func cardsOf(v *dto.BoardView) []render.Card {
	switch {
	case v.Page != nil:
		return v.Page.Cards
	case v.Chunk != nil:
		return v.Chunk.Cards
	}
	return nil
}
