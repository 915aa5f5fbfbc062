package models

// TeamMember ist ein Eintrag im institutionellen Roster. Token ist das
// personenbezogene API-Handle der Forschungsdatenbank; Mitglieder ohne Token
// sind nur transitiv über Co-Autorenschaft erreichbar.
type TeamMember struct {
	Name       string `yaml:"name" json:"name"`
	Surname    string `yaml:"surname" json:"surname"`
	Token      string `yaml:"token,omitempty" json:"token,omitempty"`
	ProfileURL string `yaml:"profile_url,omitempty" json:"profile_url,omitempty"`
	ORCID      string `yaml:"orcid,omitempty" json:"orcid,omitempty"`
}

// HasToken meldet, ob das Mitglied direkt abrufbar ist.
func (m TeamMember) HasToken() bool {
	return m.Token != ""
}

// Coauthor ist ein Co-Autor-Eintrag aus der Forschungsdatenbank.
type Coauthor struct {
	Name             string `json:"name"`
	FirstName        string `json:"first_name"`
	Token            string `json:"token,omitempty"`
	Type             string `json:"type,omitempty"`
	PublicationCount int    `json:"publication_count"`
}

// ProfileInfo sind die Stammdaten eines Forschungsdatenbank-Profils.
type ProfileInfo struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Group             string `json:"group,omitempty"`
	GroupEN           string `json:"group_en,omitempty"`
	ORCID             string `json:"orcid,omitempty"`
	TotalPublications int    `json:"total_publications"`
	InternalCoauthors int    `json:"internal_coauthors"`
	TotalCoauthors    int    `json:"total_coauthors"`
}
