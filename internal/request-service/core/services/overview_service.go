package services

import (
	"context"
	"fmt"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/ports"
)

type OverviewService struct {
	mylog mylogger.Logger
	store ports.IStore
	opts  Options
}

func NewOverviewService(log mylogger.Logger, store ports.IStore, opts Options) *OverviewService {
	return &OverviewService{
		mylog: log,
		store: store,
		opts:  opts.withDefaults(),
	}
}

var _ ports.IOverviewService = (*OverviewService)(nil)

// GetSystemOverview backs the home screen counters: requests by status, completed
// donations and donors currently marked available.
func (ov *OverviewService) GetSystemOverview(ctx context.Context) (dto.SystemOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	log := ov.mylog.Action("GetSystemOverview")

	byStatus, err := ov.store.CountByStatus(ctx)
	if err != nil {
		log.Error("cannot count requests", err)
		return dto.SystemOverview{}, fmt.Errorf("count requests: %w", err)
	}
	donations, err := ov.store.GlobalStat(ctx, GlobalDonationsStat)
	if err != nil {
		log.Error("cannot read donations stat", err)
		return dto.SystemOverview{}, fmt.Errorf("read donations: %w", err)
	}
	donors, err := ov.store.ListAvailableDonors(ctx)
	if err != nil {
		log.Error("cannot list donors", err)
		return dto.SystemOverview{}, fmt.Errorf("list donors: %w", err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	return dto.SystemOverview{
		Timestamp:       ov.opts.Now().UTC().Format(time.RFC3339),
		TotalRequests:   total,
		ActiveRequests:  byStatus[model.StatusActive],
		ByStatus:        byStatus,
		Donations:       donations,
		AvailableDonors: len(donors),
	}, nil
}
