package model

import (
	"errors"
	"fmt"
	"strings"
)

type BloodGroup string

const (
	ONeg  BloodGroup = "O-"
	OPos  BloodGroup = "O+"
	ANeg  BloodGroup = "A-"
	APos  BloodGroup = "A+"
	BNeg  BloodGroup = "B-"
	BPos  BloodGroup = "B+"
	ABNeg BloodGroup = "AB-"
	ABPos BloodGroup = "AB+"
)

var ErrUnknownBloodGroup = errors.New("unknown blood group")

// AllBloodGroups lists every group in a stable order.
var AllBloodGroups = []BloodGroup{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// donor -> recipients the donor can give to
var compatibility = map[BloodGroup]map[BloodGroup]bool{
	ONeg:  {ONeg: true, OPos: true, ANeg: true, APos: true, BNeg: true, BPos: true, ABNeg: true, ABPos: true},
	OPos:  {OPos: true, APos: true, BPos: true, ABPos: true},
	ANeg:  {ANeg: true, APos: true, ABNeg: true, ABPos: true},
	APos:  {APos: true, ABPos: true},
	BNeg:  {BNeg: true, BPos: true, ABNeg: true, ABPos: true},
	BPos:  {BPos: true, ABPos: true},
	ABNeg: {ABNeg: true, ABPos: true},
	ABPos: {ABPos: true},
}

func (g BloodGroup) Valid() bool {
	_, ok := compatibility[g]
	return ok
}

func (g BloodGroup) String() string {
	return string(g)
}

// TopicKey is the routing-key friendly form, e.g. "abpos" for AB+.
func (g BloodGroup) TopicKey() string {
	s := strings.ToLower(string(g))
	s = strings.ReplaceAll(s, "+", "pos")
	return strings.ReplaceAll(s, "-", "neg")
}

// ParseBloodGroup accepts the canonical spelling, case-insensitively and with surrounding spaces.
func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBloodGroup, s)
	}
	return g, nil
}

// IsCompatible reports whether a donor of group donor may give to a recipient of group recipient.
func IsCompatible(donor, recipient BloodGroup) (bool, error) {
	recipients, ok := compatibility[donor]
	if !ok {
		return false, fmt.Errorf("%w: donor %q", ErrUnknownBloodGroup, donor)
	}
	if !recipient.Valid() {
		return false, fmt.Errorf("%w: recipient %q", ErrUnknownBloodGroup, recipient)
	}
	return recipients[recipient], nil
}

// CompatibleDonorGroups returns the donor groups that can give to recipient.
func CompatibleDonorGroups(recipient BloodGroup) ([]BloodGroup, error) {
	if !recipient.Valid() {
		return nil, fmt.Errorf("%w: recipient %q", ErrUnknownBloodGroup, recipient)
	}
	var out []BloodGroup
	for _, donor := range AllBloodGroups {
		if compatibility[donor][recipient] {
			out = append(out, donor)
		}
	}
	return out, nil
}
