// Package charite spricht die JSON-Endpunkte der Charité
// Forschungsdatenbank an, die auch das SPA-Frontend benutzt. Pro Person
// existiert ein stabiles API-Token; darüber sind Publikationen,
// Co-Autoren und Profildaten abrufbar.
package charite

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// flexString nimmt Strings, Zahlen und Booleans entgegen. Die API ist
// bei Jahreszahlen, Heftangaben und dem OA-Status nicht typtreu.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = flexString(strconv.FormatBool(t))
	default:
		*s = flexString(fmt.Sprint(t))
	}
	return nil
}

// publicationsResponse ist die Antwort von pub_per_exp.
type publicationsResponse struct {
	Publikationen []publicationEntry `json:"publikationen"`
}

type publicationEntry struct {
	Publikation    publicationData   `json:"publikation"`
	Links          []publicationLink `json:"links"`
	InterneAutoren []internalAuthor  `json:"interneAutoren"`
	OAStatus       flexString        `json:"oaStatus"`
}

type publicationData struct {
	Titel             string     `json:"titel"`
	PublikationJahr   flexString `json:"publikationJahr"`
	AutorenString     string     `json:"autorenString"`
	Abriss            string     `json:"abriss"`
	Quelle            quelle     `json:"quelle"`
	QuelleIdentifier  flexString `json:"quelleIdentifier"`
	QuelleIdentifier2 flexString `json:"quelleIdentifier2"`
	QuelleLocation    flexString `json:"quelleLocation"`
	Einrichtung       string     `json:"einrichtung"`
	ExternPnTyp       string     `json:"externPnTyp"`
	Buchtitel         string     `json:"buchtitel"`
}

type quelle struct {
	Langname string `json:"langname"`
	Name     string `json:"name"`
}

// publicationLink trägt beschriftete Links; die Zuordnung läuft über das
// englische Label.
type publicationLink struct {
	URL string `json:"url"`
	EN  string `json:"en"`
}

type internalAuthor struct {
	Name    string       `json:"name"`
	Vorname string       `json:"vorname"`
	Person  personHandle `json:"person"`
}

type personHandle struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// coauthorsResponse ist die Antwort von co_per_exp.
type coauthorsResponse struct {
	Autoren []coauthorEntry `json:"autoren"`
}

type coauthorEntry struct {
	AutorenPerson *coauthorPerson `json:"autorenPerson"`
}

type coauthorPerson struct {
	Name                string       `json:"name"`
	Vorname             string       `json:"vorname"`
	Person              personHandle `json:"person"`
	AnzahlPublikationen int          `json:"anzahlPublikationen"`
}

// profileResponse ist die Antwort von info_per_exp.
type profileResponse struct {
	MainInfo struct {
		Vorname  string `json:"vorname"`
		Nachname string `json:"nachname"`
		Gruppe   string `json:"gruppe"`
		GruppeEN string `json:"gruppeen"`
		ORCID    string `json:"orcid"`
	} `json:"mainInfo"`
	Publikationen    int        `json:"publikationen"`
	InterneCoAutoren levelCount `json:"interneCoAutoren"`
	Gesamt           levelCount `json:"gesamt"`
}

type levelCount struct {
	Level1 int `json:"level1"`
}
