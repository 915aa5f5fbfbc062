package models

// Item ist ein Bibliothekseintrag des Referenzmanagers, so wie der
// Werkzeugkanal ihn liefert und die Web-API ihn beim Anlegen erwartet:
// flache Felder, Feldnamen im Zotero-Schema. Version sichert die
// optimistische Nebenläufigkeitskontrolle bei Schreibzugriffen.
type Item struct {
	Key              string    `json:"key,omitempty"`
	Version          int       `json:"version,omitempty"`
	ItemType         string    `json:"itemType,omitempty"`
	Title            string    `json:"title,omitempty"`
	AbstractNote     string    `json:"abstractNote,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	Date             string    `json:"date,omitempty"`
	DOI              string    `json:"DOI,omitempty"`
	URL              string    `json:"url,omitempty"`
	Extra            string    `json:"extra,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Volume           string    `json:"volume,omitempty"`
	Issue            string    `json:"issue,omitempty"`
	Pages            string    `json:"pages,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	Tags             []Tag     `json:"tags,omitempty"`
	Collections      []string  `json:"collections,omitempty"`
	DateAdded        string    `json:"dateAdded,omitempty"`
}

// InCollection prüft die Mitgliedschaft in einer Collection.
func (it *Item) InCollection(collectionKey string) bool {
	for _, c := range it.Collections {
		if c == collectionKey {
			return true
		}
	}
	return false
}

// NormalizedDOI gibt die kanonisierte DOI des Eintrags zurück, leer wenn
// keine (gültige) DOI vorhanden ist.
func (it *Item) NormalizedDOI() string {
	return NormalizeDOI(it.DOI)
}

// Creator ist ein Autor/Herausgeber-Eintrag. Entweder FirstName/LastName
// oder ein einzelnes Name-Feld (für Konsortien u.ä.) ist gesetzt.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// DisplayName gibt den anzeigbaren Namen zurück (LastName vor Name).
func (c Creator) DisplayName() string {
	if c.LastName != "" {
		return c.LastName
	}
	return c.Name
}

// Tag ist ein Schlagwort an einem Item.
type Tag struct {
	Tag string `json:"tag"`
}

// Collection ist eine benannte Gruppierung von Items im Referenzmanager.
type Collection struct {
	Key              string `json:"key"`
	Version          int    `json:"version,omitempty"`
	Name             string `json:"name"`
	ParentCollection string `json:"parentCollection,omitempty"`
}

// Annotation ist eine PDF-Annotation (Markierung, Notiz) an einem Item.
type Annotation struct {
	Key     string `json:"key,omitempty"`
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	Comment string `json:"comment,omitempty"`
	Color   string `json:"color,omitempty"`
	Page    string `json:"page,omitempty"`
}

// AdvancedSearchCriteria sind die Filterfelder der kombinierten Suche.
// Leere Felder werden nicht übertragen.
type AdvancedSearchCriteria struct {
	Title    string `json:"title,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Tag      string `json:"tag,omitempty"`
	ItemType string `json:"itemType,omitempty"`
	Year     string `json:"year,omitempty"`
}

// Empty meldet, ob kein einziges Kriterium gesetzt ist.
func (c AdvancedSearchCriteria) Empty() bool {
	return c.Title == "" && c.Creator == "" && c.Tag == "" && c.ItemType == "" && c.Year == ""
}
