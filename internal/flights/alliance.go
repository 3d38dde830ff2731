package flights

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlliance is returned when an alliance name (after synonym
// normalization) is not one of the known groups.
var ErrUnknownAlliance = errors.New("unknown alliance")

// Alliance group identifiers. AllianceOther is the bucket for every carrier
// code not in any table; it never matches a requested alliance.
const (
	AllianceStar     = "star_alliance"
	AllianceSkyTeam  = "skyteam"
	AllianceOneworld = "oneworld"
	AllianceHNA      = "hna"
	AllianceRegion1  = "民航一区"
	AllianceOther    = "other"
)

// Carrier-code membership tables. These are a bespoke grouping carried over
// from the flight-board bot, not an authoritative industry list; treat them
// as static injectable data.
var allianceMembers = map[string][]string{
	AllianceStar: {
		"A3", "AC", "CA", "AI", "NZ", "NH", "OZ", "OS", "AV", "SN",
		"CM", "OU", "MS", "ET", "BR", "LO", "LH", "ZH", "SQ", "SA",
		"LX", "TP", "TG", "TK", "UA",
	},
	AllianceSkyTeam: {
		"SU", "AR", "AM", "UX", "AF", "CI", "MU", "DL", "GA", "KQ",
		"KL", "KE", "ME", "SV", "SK", "RO", "VN", "VS", "MF",
	},
	AllianceOneworld: {
		"AS", "AA", "BA", "CX", "FJ", "AY", "IB", "JL", "MH", "QF",
		"QR", "AT", "RJ", "UL",
	},
	AllianceRegion1: {
		"CX", "BA", "QR", "QF", "AY", "AF", "SQ", "EK", "EY", "DL",
	},
	AllianceHNA: {
		"HU", "GS", "8L", "JD", "PN", "UQ", "FU", "GX", "9H", "Y8", "GT", "HX",
	},
}

// Synonym table mapping user-typed alliance names (including Chinese
// aliases and abbreviations) onto the canonical group identifiers.
var allianceSynonyms = map[string]string{
	"skyteam":      AllianceSkyTeam,
	"sky":          AllianceSkyTeam,
	"st":           AllianceSkyTeam,
	"天合":           AllianceSkyTeam,
	"天合联盟":         AllianceSkyTeam,
	"鸟合":           AllianceSkyTeam,
	"oneworld":     AllianceOneworld,
	"ow":           AllianceOneworld,
	"一球":           AllianceOneworld,
	"寰宇一家":         AllianceOneworld,
	"星盟":           AllianceStar,
	"星空联盟":         AllianceStar,
	"星":            AllianceStar,
	"star":         AllianceStar,
	"star_alliance": AllianceStar,
	"sa":           AllianceStar,
	"海航":           AllianceHNA,
	"方威":           AllianceHNA,
	"hna":          AllianceHNA,
	"民航一区":         AllianceRegion1,
	"民航1区":         AllianceRegion1,
}

// carrierAllianceIndex is built once from allianceMembers. The named
// alliance tables are checked in a fixed order so a code appearing in both a
// real alliance and a custom group (e.g. CX in oneworld and 民航一区) maps to
// exactly one group.
var carrierAllianceIndex = buildCarrierIndex()

func buildCarrierIndex() map[string]string {
	order := []string{AllianceStar, AllianceSkyTeam, AllianceOneworld, AllianceHNA, AllianceRegion1}
	idx := make(map[string]string)
	for _, name := range order {
		for _, code := range allianceMembers[name] {
			if _, ok := idx[code]; !ok {
				idx[code] = name
			}
		}
	}
	return idx
}

// NormalizeAllianceName resolves a user-supplied alliance name through the
// synonym table. Unrecognized names are a request-validation error, never a
// silent no-match.
func NormalizeAllianceName(name string) (string, error) {
	canonical, ok := allianceSynonyms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAlliance, name)
	}
	return canonical, nil
}

// CarrierAlliance maps a carrier code to its alliance group. Every code maps
// to exactly one group; unknown codes map to AllianceOther.
func CarrierAlliance(code string) string {
	if code == "" {
		return AllianceOther
	}
	if name, ok := carrierAllianceIndex[strings.ToUpper(code)]; ok {
		return name
	}
	return AllianceOther
}
