package notice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"anoa.com/classboard/internal/entity"
	events "anoa.com/classboard/internal/modules/events/service"
	gate "anoa.com/classboard/internal/modules/gate/service"
	"anoa.com/classboard/pkg/apperror"
	"anoa.com/classboard/pkg/kvstore"
	"anoa.com/classboard/pkg/storage"
)

// ProfileImageKey lives outside any device namespace; every device sees
// the same picture.
const ProfileImageKey = "shared:notice_profile_image"

const (
	msgUpdated         = "공지 프로필 사진이 변경되었습니다."
	msgNotImage        = "이미지 파일만 올릴 수 있습니다."
	msgTooLarge        = "사진 용량이 너무 큽니다."
	msgRoleRequired    = "선생님만 이용할 수 있습니다."
	msgStorageDisabled = "사진 저장소가 설정되지 않았습니다."
)

type Publisher interface {
	Publish(ctx context.Context, deviceID string, ev events.Event) error
}

type NoticeService interface {
	ProfileImageURL(ctx context.Context) string
	UpdateProfileImage(ctx context.Context, deviceID string, sess entity.Session, r io.Reader, fileName string) (string, string, error)
}

type noticeService struct {
	store     kvstore.Store
	images    storage.ImageStorage
	publisher Publisher
	maxBytes  int
}

// NewNoticeService wires the shared profile picture. images may be nil,
// in which case uploads are refused.
func NewNoticeService(store kvstore.Store, images storage.ImageStorage, publisher Publisher, maxBytes int) NoticeService {
	return &noticeService{store: store, images: images, publisher: publisher, maxBytes: maxBytes}
}

func (s *noticeService) ProfileImageURL(ctx context.Context) string {
	url, err := s.store.Get(ctx, ProfileImageKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("[notice] read profile image: %v", err)
		}
		return ""
	}
	return url
}

// UpdateProfileImage returns the new URL and a message for the user.
func (s *noticeService) UpdateProfileImage(ctx context.Context, deviceID string, sess entity.Session, r io.Reader, fileName string) (string, string, error) {
	decision := gate.CanView(sess, gate.SurfaceNoticeProfile)
	if !decision.Visible {
		if decision.Reason == gate.ReasonRoleRequired {
			return "", "", apperror.New(http.StatusForbidden, msgRoleRequired, apperror.ErrForbidden)
		}
		return "", "", apperror.ErrLocked
	}
	if s.images == nil {
		return "", "", apperror.New(http.StatusServiceUnavailable, msgStorageDisabled, apperror.ErrInternal)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(s.maxBytes)+1))
	if err != nil {
		return "", "", apperror.Wrap(apperror.ErrBadRequest, "사진을 읽을 수 없습니다.")
	}
	if len(data) > s.maxBytes {
		return "", "", apperror.New(http.StatusBadRequest, msgTooLarge, apperror.ErrInvalidInput)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return "", "", apperror.New(http.StatusBadRequest, msgNotImage, apperror.ErrInvalidInput)
	}

	previous := s.ProfileImageURL(ctx)

	url, err := s.images.UploadImage(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return "", "", fmt.Errorf("upload notice profile image: %w", err)
	}
	if err := s.store.Set(ctx, ProfileImageKey, url); err != nil {
		// Don't leave an orphan behind.
		if delErr := s.images.DeleteImage(ctx, url); delErr != nil {
			log.Printf("[notice] delete orphan %s: %v", url, delErr)
		}
		return "", "", fmt.Errorf("save notice profile image: %w", err)
	}

	if previous != "" && previous != url {
		if err := s.images.DeleteImage(ctx, previous); err != nil {
			log.Printf("[notice] delete previous image %s: %v", previous, err)
		}
	}

	if s.publisher != nil {
		ev := events.Event{Type: events.TypeProfileChanged, Category: entity.CategoryNotice.String(), At: time.Now()}
		if err := s.publisher.Publish(ctx, deviceID, ev); err != nil {
			log.Printf("[notice] publish profile change: %v", err)
		}
	}
	return url, msgUpdated, nil
}
