package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/gateway"
	"anoa.com/classboard/internal/modules/session/dto"
	"anoa.com/classboard/pkg/apperror"
	"anoa.com/classboard/pkg/validator"
)

const (
	codeWrongPassword = "WRONG_PW"
	codeUnknownID     = "NO_ID"
	codePending       = "PENDING"
	codeExists        = "EXISTS"
)

const (
	msgWrongPassword = "비밀번호가 틀렸습니다."
	msgUnknownID     = "존재하지 않는 학번입니다. 회원가입을 먼저 해주세요."
	msgExists        = "이미 가입된 학번입니다."
	msgSignedUp      = "가입 신청이 완료되었습니다!\n선생님이 승인해주시면 로그인할 수 있습니다."
	msgLoggedOut     = "로그아웃 되었습니다."
)

// Authenticator is the part of the gateway the auth flows need.
type Authenticator interface {
	Login(ctx context.Context, id, pw string) (*gateway.LoginResult, error)
	Signup(ctx context.Context, id, pw, name string) (*gateway.SignupResult, error)
}

type AuthService interface {
	Login(ctx context.Context, store *Store, req dto.LoginRequest) (*dto.AuthResponse, error)
	Signup(ctx context.Context, req dto.SignupRequest) (string, error)
	Logout(ctx context.Context, store *Store) (string, error)
}

type authService struct {
	gw  Authenticator
	now func() time.Time
}

func NewAuthService(gw Authenticator) AuthService {
	return &authService{gw: gw, now: time.Now}
}

func (s *authService) Login(ctx context.Context, store *Store, req dto.LoginRequest) (*dto.AuthResponse, error) {
	req.ID = strings.TrimSpace(req.ID)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	res, err := s.gw.Login(ctx, req.ID, req.Password)
	if err != nil {
		return nil, err
	}

	if !res.Success {
		return nil, s.loginFailure(ctx, store, req, res)
	}

	sess := entity.Session{
		Identity:   res.Name.String(),
		StudentID:  req.ID,
		Role:       roleFromLogin(res.Role.String(), res.Name.String()),
		Approval:   entity.ApprovalApproved,
		SignedInAt: s.now(),
	}
	if strings.EqualFold(res.Status.String(), "pending") {
		sess.Approval = entity.ApprovalPending
	}
	if sess.Identity == "" {
		sess.Identity = req.ID
	}

	if err := store.SignIn(ctx, sess); err != nil {
		log.Printf("[auth] session for %s not persisted: %v", req.ID, err)
	}
	s.remember(ctx, store, req)

	msg := fmt.Sprintf("%s님, 환영합니다!", sess.Identity)
	if !sess.IsApproved() {
		msg = pendingMessage(sess.Identity)
	}
	return &dto.AuthResponse{Message: msg, Session: store.Current()}, nil
}

// loginFailure maps a server-supplied failure code. A wrong password or an
// unknown ID leaves the current session untouched; PENDING signs in a
// pending session so member surfaces stay locked.
func (s *authService) loginFailure(ctx context.Context, store *Store, req dto.LoginRequest, res *gateway.LoginResult) error {
	switch res.Code.String() {
	case codePending:
		name := res.Name.String()
		if name == "" {
			name = req.ID
		}
		sess := entity.Session{
			Identity:   name,
			StudentID:  req.ID,
			Role:       roleFromLogin(res.Role.String(), name),
			Approval:   entity.ApprovalPending,
			SignedInAt: s.now(),
		}
		if err := store.SignIn(ctx, sess); err != nil {
			log.Printf("[auth] pending session for %s not persisted: %v", req.ID, err)
		}
		s.remember(ctx, store, req)
		return apperror.New(http.StatusForbidden, pendingMessage(name), apperror.ErrPendingApproval)
	case codeWrongPassword:
		return apperror.New(http.StatusUnauthorized, msgWrongPassword, apperror.ErrWrongPassword)
	case codeUnknownID:
		return apperror.New(http.StatusUnauthorized, msgUnknownID, apperror.ErrUnknownID)
	}
	return apperror.New(http.StatusUnauthorized, fmt.Sprintf("로그인 실패: %s", res.Error.String()), apperror.ErrAuthFailed)
}

func (s *authService) remember(ctx context.Context, store *Store, req dto.LoginRequest) {
	id := ""
	if req.Remember {
		id = req.ID
	}
	if err := store.Remember(ctx, id); err != nil {
		log.Printf("[auth] remember id: %v", err)
	}
}

func (s *authService) Signup(ctx context.Context, req dto.SignupRequest) (string, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return "", err
	}

	res, err := s.gw.Signup(ctx, req.ID, req.Password, req.Name)
	if err != nil {
		return "", err
	}
	if res.Success {
		return msgSignedUp, nil
	}
	if res.Code.String() == codeExists {
		return "", apperror.New(http.StatusConflict, msgExists, apperror.ErrAlreadyExists)
	}
	return "", apperror.New(http.StatusBadRequest, fmt.Sprintf("가입 실패: %s", res.Error.String()), apperror.ErrAuthFailed)
}

func (s *authService) Logout(ctx context.Context, store *Store) (string, error) {
	if err := store.SignOut(ctx); err != nil {
		log.Printf("[auth] sign out not persisted: %v", err)
	}
	return msgLoggedOut, nil
}

func pendingMessage(name string) string {
	return fmt.Sprintf("[승인 대기중]\n\n선생님의 가입 승인을 기다리고 있습니다.\n(신청자: %s)", name)
}

// roleFromLogin reads the role column, falling back to the display name
// when the backend does not send one.
func roleFromLogin(role, name string) entity.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "teacher", "선생님", "교사":
		return entity.RoleTeacher
	case "":
		if strings.Contains(name, "선생님") {
			return entity.RoleTeacher
		}
	}
	return entity.RoleStudent
}
