package charite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"refdesk/models"
)

// defaultTeam ist das eingebaute CEIR-Roster mit den in der
// Forschungsdatenbank ermittelten API-Tokens. Mitglieder ohne Token haben
// kein internes Profil; ihre Publikationen tauchen als Co-Autorenschaft
// auf anderen Profilen auf.
var defaultTeam = []models.TeamMember{
	// Leitung
	{
		Name:       "Sylvia Thun",
		Surname:    "Thun",
		Token:      "F7C62FED63154D1D9C567E6394386C1F",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/sylvia_thun/de",
	},
	// Team (alphabetisch nach Nachnamen)
	{
		Name:       "Alexander Bartschke",
		Surname:    "Bartschke",
		Token:      "851d2d2c374943f4aa0ed661b9dfa39e",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/alexander_bartschke/de",
	},
	{
		Name:    "Munja Chahabadi",
		Surname: "Chahabadi",
	},
	{
		Name:       "Thomas Debertshäuser",
		Surname:    "Debertshäuser",
		Token:      "85bcddc047444b8fad16b77bcf25ad8e",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/thomas_debertshaeuser/de",
	},
	{
		Name:    "Claudia Finis",
		Surname: "Finis",
		ORCID:   "0009-0004-0018-1312",
	},
	{
		Name:       "Margaux Gatrio",
		Surname:    "Gatrio",
		Token:      "681a5eea8c8f4988afef105e6c9ab600",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/expertenprofil.xhtml?id=681a5eea8c8f4988afef105e6c9ab600&type=ps&lang=de",
	},
	{
		Name:    "Adam Graefe",
		Surname: "Graefe",
		ORCID:   "0009-0004-8124-8864",
	},
	{
		Name:    "Wiebke Hartung",
		Surname: "Hartung",
	},
	{
		Name:    "Thimo-Andre Hölter",
		Surname: "Hölter",
		ORCID:   "0000-0002-5949-5269",
	},
	{
		Name:       "Miriam Rebecca Hübner",
		Surname:    "Hübner",
		Token:      "26b0f5b4da1b40308820c684854b3381",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/miriam-rebecca_huebner/de",
	},
	{
		Name:       "Sophie Klopfenstein",
		Surname:    "Klopfenstein",
		Token:      "58ed0f17be6b4281bdcbf1630a9b1847",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/sophie_klopfenstein/de",
	},
	{
		Name:    "Hanneke Leegwater",
		Surname: "Leegwater",
		ORCID:   "0000-0001-6003-1544",
	},
	{
		Name:       "Michael Rusongoza Muzoora",
		Surname:    "Muzoora",
		Token:      "5162a9a2c76647d4b676baa6a36408ca",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/michael_muzoora/de",
	},
	{
		Name:       "Rasim Atakan Poyraz",
		Surname:    "Poyraz",
		Token:      "d68c44428d9445809d89b728fb5fe690",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/rasim-atakan_poyraz/de",
	},
	{
		Name:       "Eugenia Rinaldi",
		Surname:    "Rinaldi",
		Token:      "b29459c137af460ca44312ecced5bae9",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/eugenia_rinaldi/de",
	},
	{
		Name:       "Eduardo Salgado",
		Surname:    "Salgado",
		Token:      "19bdf2db5939424abe39a50b2146c666",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/expertenprofil.xhtml?id=19bdf2db5939424abe39a50b2146c666&type=ps&lang=de",
	},
	{
		Name:       "Julian Saß",
		Surname:    "Saß",
		Token:      "e6363d0ec17b4ee7bb22afa5a19660ef",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/julian_sass/de",
	},
	{
		Name:       "Marco Schaarschmidt",
		Surname:    "Schaarschmidt",
		Token:      "6cda3395215948bdabb5fbd08a40a838",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/expertenprofil.xhtml?id=6cda3395215948bdabb5fbd08a40a838&type=ps&lang=de",
	},
	{
		Name:    "Lotte Schwiening",
		Surname: "Schwiening",
		ORCID:   "0009-0009-3543-4793",
	},
	{
		Name:       "Carina Vorisek",
		Surname:    "Vorisek",
		Token:      "d29dd756befd4385aacabab2920db213",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/carina-nina_vorisek/de",
	},
	// Assoziierte Wissenschaftlerinnen
	{
		Name:       "Andrea Essenwanger",
		Surname:    "Essenwanger",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/andrea_essenwanger/de",
	},
	{
		Name:       "Caroline Stellmach",
		Surname:    "Stellmach",
		ProfileURL: "https://forschungsdatenbank.charite.de/experts/profile/caroline_stellmach/de",
	},
}

// DefaultTeam liefert eine Kopie des eingebauten Rosters.
func DefaultTeam() []models.TeamMember {
	return append([]models.TeamMember(nil), defaultTeam...)
}

// LoadRoster lädt ein Roster aus einer YAML-Datei (flache Liste von
// Mitgliedern). Ein leerer Pfad liefert das eingebaute Team.
func LoadRoster(path string) ([]models.TeamMember, error) {
	if path == "" {
		return DefaultTeam(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster-Datei nicht lesbar: %w", err)
	}
	var members []models.TeamMember
	if err := yaml.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("roster-YAML nicht lesbar: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("roster-Datei %s enthält keine Mitglieder", path)
	}
	return members, nil
}

// RosterEntry ist die API-Darstellung eines Roster-Mitglieds.
type RosterEntry struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Token       string `json:"token,omitempty"`
	ProfileURL  string `json:"profile_url,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
	HasAPIToken bool   `json:"has_api_token"`
}
