package model

import (
	"errors"
	"testing"
)

func TestUniversalDonorAndRecipient(t *testing.T) {
	for _, g := range AllBloodGroups {
		ok, err := IsCompatible(ONeg, g)
		if err != nil || !ok {
			t.Fatalf("O- should give to %s (ok=%v err=%v)", g, ok, err)
		}
		ok, err = IsCompatible(g, ABPos)
		if err != nil || !ok {
			t.Fatalf("%s should give to AB+ (ok=%v err=%v)", g, ok, err)
		}
		ok, err = IsCompatible(ABPos, g)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok != (g == ABPos) {
			t.Fatalf("AB+ -> %s: got %v", g, ok)
		}
	}
}

func TestCompatibilityTable(t *testing.T) {
	cases := []struct {
		donor, recipient BloodGroup
		want             bool
	}{
		{OPos, APos, true},
		{OPos, ONeg, false},
		{ANeg, ABNeg, true},
		{APos, ANeg, false},
		{BNeg, BPos, true},
		{BPos, ABNeg, false},
		{ABNeg, ABPos, true},
		{ABNeg, ANeg, false},
	}
	for _, tc := range cases {
		got, err := IsCompatible(tc.donor, tc.recipient)
		if err != nil {
			t.Fatalf("%s->%s: %v", tc.donor, tc.recipient, err)
		}
		if got != tc.want {
			t.Fatalf("%s->%s: want %v got %v", tc.donor, tc.recipient, tc.want, got)
		}
	}
}

func TestIsCompatibleRejectsUnknownGroup(t *testing.T) {
	if _, err := IsCompatible("C+", APos); !errors.Is(err, ErrUnknownBloodGroup) {
		t.Fatalf("expected unknown blood group error, got %v", err)
	}
	if _, err := IsCompatible(APos, ""); !errors.Is(err, ErrUnknownBloodGroup) {
		t.Fatalf("expected unknown blood group error, got %v", err)
	}
}

func TestParseBloodGroup(t *testing.T) {
	g, err := ParseBloodGroup(" ab+ ")
	if err != nil || g != ABPos {
		t.Fatalf("got %q, %v", g, err)
	}
	if _, err := ParseBloodGroup("AB"); err == nil {
		t.Fatalf("expected error for AB")
	}
	if ABPos.TopicKey() != "abpos" || ONeg.TopicKey() != "oneg" {
		t.Fatalf("unexpected topic keys %q %q", ABPos.TopicKey(), ONeg.TopicKey())
	}
}

func TestCompatibleDonorGroups(t *testing.T) {
	donors, err := CompatibleDonorGroups(ANeg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []BloodGroup{ONeg, ANeg}
	if len(donors) != len(want) {
		t.Fatalf("want %v got %v", want, donors)
	}
	for i := range want {
		if donors[i] != want[i] {
			t.Fatalf("want %v got %v", want, donors)
		}
	}
	all, _ := CompatibleDonorGroups(ABPos)
	if len(all) != 8 {
		t.Fatalf("AB+ receives from all groups, got %v", all)
	}
}
