package services

import (
	"context"
	"strings"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

// ProfileService is the thin owner-facing side of the profile collaborator.
type ProfileService struct {
	mylog    mylogger.Logger
	profiles ports.IProfileRepo
	opts     Options
}

func NewProfileService(log mylogger.Logger, profiles ports.IProfileRepo, opts Options) *ProfileService {
	return &ProfileService{mylog: log, profiles: profiles, opts: opts.withDefaults()}
}

var _ ports.IProfileService = (*ProfileService)(nil)

func (ps *ProfileService) UpsertProfile(ctx context.Context, userID string, req dto.ProfileDto) (model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if userID == "" {
		return model.Profile{}, myerrors.New(myerrors.KindValidation, "user id is required")
	}
	p := model.Profile{
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		HomeLocation: req.HomeLocation,
		IsAvailable:  req.IsAvailable,
		UpdatedAt:    ps.opts.Now(),
	}
	if req.BloodGroup != "" {
		g, err := model.ParseBloodGroup(req.BloodGroup)
		if err != nil {
			return model.Profile{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid blood group")
		}
		p.BloodGroup = g
	}
	if p.HomeLocation != nil {
		if err := p.HomeLocation.Validate(); err != nil {
			return model.Profile{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid home location")
		}
	}

	saved, err := ps.profiles.UpsertProfile(ctx, p)
	if err != nil {
		ps.mylog.Action("UpsertProfile").Error("cannot save profile", err, "user-id", userID)
		return model.Profile{}, err
	}
	return saved, nil
}

func (ps *ProfileService) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return ps.profiles.GetProfile(ctx, userID)
}
