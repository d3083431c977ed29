package geocode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
)

func loc(lat, lng float64) *model.Location {
	return &model.Location{Lat: lat, Lng: lng}
}

func testDirectory() *Directory {
	return New([]model.Hospital{
		{Name: "Apollo Hospitals", Address: "21 Greams Lane, Chennai", Location: loc(13.0614, 80.2518)},
		{Name: "Government Hospital Srivilliputhur", Address: "Hospital Road, Srivilliputhur", Location: loc(9.5121, 77.6336)},
		{Name: "Government Hospital Krishnankoil", Address: "Near College, Krishnankoil"},
		{Name: "Kauvery Hospital", Address: "199 EVR Periyar Salai, Chennai", Location: loc(13.0825, 80.2410)},
	})
}

func TestResolveAddress(t *testing.T) {
	d := testDirectory()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact", "Apollo Hospitals", "Apollo Hospitals"},
		{"case and spacing", "  apollo   HOSPITALS ", "Apollo Hospitals"},
		{"name inside text", "Kauvery Hospital, Kilpauk, Chennai", "Kauvery Hospital"},
		{"unique fragment", "krishnankoil", "Government Hospital Krishnankoil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := d.ResolveAddress(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("resolve %q: %v", tt.input, err)
			}
			if h.Name != tt.want {
				t.Fatalf("resolve %q = %q, want %q", tt.input, h.Name, tt.want)
			}
		})
	}
}

func TestResolveAddressNotFound(t *testing.T) {
	d := testDirectory()
	for _, input := range []string{"", "Mayo Clinic", "government hospital"} {
		if _, err := d.ResolveAddress(context.Background(), input); !errors.Is(err, myerrors.ErrNotFound) {
			t.Fatalf("resolve %q: want not found, got %v", input, err)
		}
	}
}

func TestResolveKeepsMissingCoordinates(t *testing.T) {
	h, err := testDirectory().ResolveAddress(context.Background(), "Government Hospital Krishnankoil")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.Location != nil {
		t.Fatalf("location should stay unknown, got %+v", h.Location)
	}
}

func TestReverseGeocode(t *testing.T) {
	d := testDirectory()
	ctx := context.Background()

	label, err := d.ReverseGeocode(ctx, model.Location{Lat: 13.0620, Lng: 80.2518})
	if err != nil || label != "Apollo Hospitals" {
		t.Fatalf("near apollo: %q err=%v", label, err)
	}
	label, err = d.ReverseGeocode(ctx, model.Location{Lat: 11.0, Lng: 78.0})
	if err != nil || label != "" {
		t.Fatalf("middle of nowhere: %q err=%v", label, err)
	}
	if _, err := d.ReverseGeocode(ctx, model.Location{Lat: 91}); err == nil {
		t.Fatal("invalid location must fail")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hospitals.json")
	body := `[{"name":"Apollo Hospitals","address":"Chennai","location":{"lat":13.06,"lng":80.25}},{"name":"Field Clinic"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("len = %d", d.Len())
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`[{"name":"X","location":{"lat":200,"lng":0}}]`), 0o600)
	if _, err := LoadFile(bad); err == nil {
		t.Fatal("out of range coordinates must be rejected")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("missing file must fail")
	}
}
