package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type UpdateAvatarMessage struct {
	User       *User
	Upload     AvatarUpload
	OnResponse func(*AvatarResponse)
}

func (e UpdateAvatarMessage) Type() string { return "user.avatar.update" }

func (e UpdateAvatarMessage) Validate() error {
	if e.User == nil {
		return ErrNotAuthorized
	}
	if strings.TrimSpace(e.Upload.Path) == "" {
		return ErrAvatarRequired
	}
	return nil
}

type UpdateAvatarHandler struct {
	service *AccountService
}

var _ command.Commander[UpdateAvatarMessage] = (*UpdateAvatarHandler)(nil)

func NewUpdateAvatarHandler(service *AccountService) *UpdateAvatarHandler {
	return &UpdateAvatarHandler{service: service}
}

func (h *UpdateAvatarHandler) Execute(ctx context.Context, event UpdateAvatarMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during avatar update")
	default:
		res, err := h.service.UpdateAvatar(ctx, event.User, event.Upload)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(res)
		}
		return nil
	}
}

// UpdateAvatar resizes the uploaded file, moves it to public storage and
// records the new reference. Image and storage failures are reported as
// processing errors.
func (s *AccountService) UpdateAvatar(ctx context.Context, user *User, upload AvatarUpload) (*AvatarResponse, error) {
	if err := (UpdateAvatarMessage{User: user, Upload: upload}).Validate(); err != nil {
		return nil, err
	}

	if s.avatars == nil {
		return nil, NewProcessingError(
			goerrors.New("avatar processor not configured", goerrors.CategoryInternal),
			"failed to process avatar",
		)
	}

	from := CurrentState(user)
	to, err := NextState(from, EventUpdateAvatar)
	if err != nil {
		return nil, ErrNotAuthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	avatarURL, err := s.avatars.Process(ctx, user.ID, upload)
	if err != nil {
		s.logger.Error("avatar processing failed", "user_id", user.ID.String(), "error", err)
		return nil, NewProcessingError(err, "failed to process avatar")
	}

	if err := s.repo.Users().SetAvatar(ctx, user.ID, avatarURL); err != nil {
		// the previous reference may share the stored name, keep it
		if avatarURL != user.AvatarURL {
			_ = s.avatars.Remove(ctx, avatarURL)
		} else {
			s.logger.Warn("avatar stored but reference not saved", "user_id", user.ID.String(), "avatar_url", avatarURL)
		}
		return nil, NewProcessingError(err, "failed to store avatar reference")
	}
	user.AvatarURL = avatarURL

	s.emit(ctx, ActivityEventAvatarUpdated, user, from, to, map[string]any{
		"avatar_url": avatarURL,
	})

	return &AvatarResponse{AvatarURL: avatarURL}, nil
}
