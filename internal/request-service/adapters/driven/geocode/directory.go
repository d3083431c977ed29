// Package geocode resolves free-text hospital names against a fixed directory
// loaded from JSON.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

// NearbyKm bounds ReverseGeocode; positions further from every hospital get no label.
const NearbyKm = 1.0

type Directory struct {
	hospitals []model.Hospital
}

var _ ports.IGeocoder = (*Directory)(nil)

func New(hospitals []model.Hospital) *Directory {
	return &Directory{hospitals: hospitals}
}

// LoadFile reads a JSON array of hospitals.
func LoadFile(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hospital directory: %w", err)
	}
	var hospitals []model.Hospital
	if err := json.Unmarshal(raw, &hospitals); err != nil {
		return nil, fmt.Errorf("parse hospital directory %s: %w", path, err)
	}
	for i, h := range hospitals {
		if strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("hospital #%d has no name", i)
		}
		if h.Location != nil {
			if err := h.Location.Validate(); err != nil {
				return nil, fmt.Errorf("hospital %q: %w", h.Name, err)
			}
		}
	}
	return New(hospitals), nil
}

func (d *Directory) Len() int { return len(d.hospitals) }

// ResolveAddress prefers an exact name, then the longest directory name contained
// in text, then a single directory name that contains text.
func (d *Directory) ResolveAddress(_ context.Context, text string) (model.Hospital, error) {
	q := normalize(text)
	if q == "" {
		return model.Hospital{}, myerrors.New(myerrors.KindNotFound, "empty hospital name")
	}

	best := -1
	for i, h := range d.hospitals {
		name := normalize(h.Name)
		if name == q {
			return d.hospitals[i], nil
		}
		if strings.Contains(q, name) && (best < 0 || len(name) > len(normalize(d.hospitals[best].Name))) {
			best = i
		}
	}
	if best >= 0 {
		return d.hospitals[best], nil
	}

	var partial []int
	for i, h := range d.hospitals {
		if strings.Contains(normalize(h.Name), q) {
			partial = append(partial, i)
		}
	}
	switch len(partial) {
	case 0:
		return model.Hospital{}, myerrors.New(myerrors.KindNotFound, "no hospital matches %q", text)
	case 1:
		return d.hospitals[partial[0]], nil
	}
	return model.Hospital{}, myerrors.New(myerrors.KindNotFound, "%q matches %d hospitals, be more specific", text, len(partial))
}

func (d *Directory) ReverseGeocode(_ context.Context, loc model.Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	label, bestKm := "", NearbyKm
	for _, h := range d.hospitals {
		if h.Location == nil {
			continue
		}
		if km := model.HaversineKm(loc, *h.Location); km <= bestKm {
			label, bestKm = h.Name, km
		}
	}
	return label, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
