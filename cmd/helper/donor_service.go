package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const earthRadiusKm = 6371.0

type DonorService struct {
	cfg    *Config
	http   *HTTPClient
	logger *Logger
	pos    Location
}

func NewDonorService(cfg *Config, logger *Logger) (*DonorService, error) {
	token, err := SignToken(cfg.Secret, cfg.DonorID, time.Now())
	if err != nil {
		return nil, err
	}
	return &DonorService{
		cfg:    cfg,
		http:   NewHTTPClient(token, logger),
		logger: logger,
		pos:    cfg.Start,
	}, nil
}

func (d *DonorService) Token() string {
	return d.http.token
}

// SignToken mints a token the request service accepts for userID.
func SignToken(secret, userID string, now time.Time) (string, error) {
	if secret == "" || userID == "" {
		return "", errors.New("secret and user id are required")
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Run accepts the request and then walks toward the hospital, reporting each step,
// until the server marks the donor as arrived or ctx ends.
func (d *DonorService) Run(ctx context.Context) error {
	var req RequestView
	if err := d.http.DoRequest("GET", d.url(RequestPath), nil, &req); err != nil {
		return err
	}
	d.logger.Info("request %s at %q is %s", req.ID, req.HospitalName, req.Status)

	var acc AcceptResponse
	if err := d.http.DoRequest("POST", d.url(AcceptPath), AcceptRequest{Location: &d.pos}, &acc); err != nil {
		return err
	}
	d.logger.Info("accepted: %s %d/%d units", acc.Status, acc.UnitsFulfilled, acc.UnitsNeeded)

	if req.HospitalLocation == nil {
		d.logger.Warn("hospital has no location, nothing to track")
		return nil
	}

	stepKm := d.cfg.SpeedKmh * d.cfg.StepPeriod.Hours()
	ticker := time.NewTicker(d.cfg.StepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		d.pos = Step(d.pos, *req.HospitalLocation, stepKm)
		var upd TrackingResponse
		if err := d.http.DoRequest("POST", d.url(LocationPath), d.pos, &upd); err != nil {
			if strings.Contains(err.Error(), " 409 ") {
				d.logger.Warn("tracking closed: %v", err)
				return nil
			}
			d.logger.Error("report location: %v", err)
			continue
		}
		d.logger.Info("at %.5f,%.5f distance=%s eta=%s", d.pos.Lat, d.pos.Lng, fmtPtr(upd.DistanceKm, "km"), fmtPtr(upd.EtaMinutes, "min"))
		if upd.Arrived {
			d.logger.Info("arrived, waiting for the requester to confirm")
			return nil
		}
	}
}

func (d *DonorService) url(path string) string {
	return d.cfg.BaseURL + fmt.Sprintf(path, d.cfg.RequestID)
}

// Step moves from toward to by at most km along a straight line in degree space.
func Step(from, to Location, km float64) Location {
	dist := haversine(from, to)
	if dist <= km || dist == 0 {
		return to
	}
	f := km / dist
	return Location{
		Lat: from.Lat + (to.Lat-from.Lat)*f,
		Lng: from.Lng + (to.Lng-from.Lng)*f,
	}
}

func haversine(a, b Location) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func fmtPtr(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%s", *v, unit)
}
