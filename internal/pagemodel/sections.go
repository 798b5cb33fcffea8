package pagemodel

import "strings"

type SectionType string

const (
	Board      SectionType = "BOARD"
	Supporters SectionType = "SUPPORTERS"
	Active     SectionType = "ACTIVE"
	Mascots    SectionType = "MASCOTS"
	Alumni     SectionType = "ALUMNI"
)

// Sections lists every section in lookup order, a member found in more than one
// section is reported in the first.
var Sections = []SectionType{Board, Supporters, Active, Mascots, Alumni}

// ParseSectionType accepts a section name in any case.
func ParseSectionType(s string) (SectionType, bool) {
	t := SectionType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := sectionConfigs[t]
	return t, ok
}

type sectionConfig struct {
	// ariaLabel is matched as a substring of the section's aria-label, unused for the
	// board which is found by its heading.
	ariaLabel string
	color     string
	tint      string
	shadow    string
	// badge is empty for the board, whose badge follows the current heading.
	badge string
}

var sectionConfigs = map[SectionType]sectionConfig{
	Board: {
		color:  "#00aeef",
		tint:   "rgba(0, 174, 239, 0.12)",
		shadow: "rgba(0, 174, 239, 0.3)",
	},
	Supporters: {
		ariaLabel: "Board Supporters",
		color:     "#f47b20",
		tint:      "rgba(244, 123, 32, 0.12)",
		shadow:    "rgba(244, 123, 32, 0.3)",
		badge:     "Board Supporter",
	},
	Active: {
		ariaLabel: "Active Members",
		color:     "#ec008c",
		tint:      "rgba(236, 0, 140, 0.12)",
		shadow:    "rgba(236, 0, 140, 0.3)",
		badge:     "Active Member",
	},
	Mascots: {
		ariaLabel: "Mascots",
		color:     "#ec008c",
		tint:      "rgba(236, 0, 140, 0.12)",
		shadow:    "rgba(236, 0, 140, 0.3)",
		badge:     "Mascotte",
	},
	Alumni: {
		ariaLabel: "Alumni Network",
		color:     "#6c757d",
		tint:      "rgba(108, 117, 125, 0.18)",
		shadow:    "rgba(108, 117, 125, 0.35)",
		badge:     "Alumni Network",
	},
}

var roleDisplayNames = map[string]string{
	"Culture":                        "Coordinatrice Culture",
	"Education & Youth":              "Coordinatrice Education & Youth",
	"Environmental Sustainability":   "Coordinatore Environmental Sustainability",
	"Health & Well Being":            "Coordinatore Health & Well-Being",
	"Skills & Employability":         "Coordinatore Skills & Employability",
	"Social Inclusion":               "Coordinatore Social Inclusion",
	"Responsabile Askerasmus":        "Responsabile AskErasmus",
	"Responsabile Corso di italiano": "Responsabile corso d'italiano",
}

// DisplayRole returns the text shown on a card for a role, roles without a dedicated
// display name are shown as they are.
func DisplayRole(role string) string {
	if display, ok := roleDisplayNames[role]; ok {
		return display
	}
	return role
}
