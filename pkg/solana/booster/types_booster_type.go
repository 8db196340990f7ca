package booster

import (
	"strings"

	"github.com/pkg/errors"
)

type BoosterType uint8

const (
	BoosterTypeXP BoosterType = iota
	BoosterTypePoints
	BoosterTypeCombo
)

var AllBoosterTypes = []BoosterType{
	BoosterTypeXP,
	BoosterTypePoints,
	BoosterTypeCombo,
}

// IsValid reports whether t is a type the program knows. Decoded records are
// never rejected for an unknown type, so callers check this themselves.
func (t BoosterType) IsValid() bool {
	return t <= BoosterTypeCombo
}

func (t BoosterType) String() string {
	switch t {
	case BoosterTypeXP:
		return "xp"
	case BoosterTypePoints:
		return "points"
	case BoosterTypeCombo:
		return "combo"
	}
	return "unknown"
}

func BoosterTypeFromString(s string) (BoosterType, error) {
	for _, t := range AllBoosterTypes {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidBoosterType, "%q", s)
}

type PackSize uint8

const (
	PackSizeSmall PackSize = iota
	PackSizeLarge
)

func (s PackSize) IsValid() bool {
	return s <= PackSizeLarge
}

func (s PackSize) String() string {
	switch s {
	case PackSizeSmall:
		return "small"
	case PackSizeLarge:
		return "large"
	}
	return "unknown"
}

func PackSizeFromString(s string) (PackSize, error) {
	switch strings.ToLower(s) {
	case "small":
		return PackSizeSmall, nil
	case "large":
		return PackSizeLarge, nil
	}
	return 0, errors.Wrapf(ErrInvalidPackSize, "%q", s)
}
