// Package pubmed enthält die Logik für die Interaktion mit den NCBI
// E-Utilities (ESearch, EFetch, ELink, ESummary) und dem ID-Converter.
package pubmed

import "encoding/xml"

// ESearchResponse repräsentiert die JSON-Antwort von ESearch.
type ESearchResponse struct {
	ESearchResult struct {
		Count            string   `json:"count"`
		RetMax           string   `json:"retmax"`
		RetStart         string   `json:"retstart"`
		IdList           []string `json:"idlist"`
		QueryTranslation string   `json:"querytranslation"`
	} `json:"esearchresult"`
}

// ELinkResponse repräsentiert die JSON-Antwort von ELink.
type ELinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			DBTo     string   `json:"dbto"`
			LinkName string   `json:"linkname"`
			Links    []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// ConverterResponse repräsentiert die JSON-Antwort des NCBI ID-Converters.
type ConverterResponse struct {
	Records []ConverterRecord `json:"records"`
}

// ConverterRecord enthält die Kennungen eines Artikels in allen drei
// Systemen. Status ist nur bei Fehlschlägen gesetzt.
type ConverterRecord struct {
	PMID   string `json:"pmid"`
	PMCID  string `json:"pmcid"`
	DOI    string `json:"doi"`
	Status string `json:"status,omitempty"`
}

// Validation ist das Ergebnis einer PMID-Prüfung.
type Validation struct {
	ValidFormat bool `json:"valid_format"`
	Exists      bool `json:"exists"`
}

// FullText ist der PMC-Volltext eines Artikels.
type FullText struct {
	PMID  string `json:"pmid"`
	PMCID string `json:"pmcid"`
	XML   string `json:"full_text_xml"`
	URL   string `json:"url"`
}

// AdvancedQuery beschreibt eine feldbezogene Suche. Gesetzte Felder
// werden mit AND verknüpft, MeSH-Begriffe untereinander mit OR.
type AdvancedQuery struct {
	Title       string   `json:"title,omitempty"`
	Author      string   `json:"author,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	MeshTerms   []string `json:"mesh_terms,omitempty"`
	ArticleType string   `json:"article_type,omitempty"`
	MinDate     string   `json:"min_date,omitempty"`
	MaxDate     string   `json:"max_date,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"`
}

// XML-Strukturen für EFetch-Antworten. Titel und Abstract werden als
// innerxml gelesen, weil PubMed dort verschachtelte Tags wie <i> und
// <sup> liefert.

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation   medlineCitation `xml:"MedlineCitation"`
	PubmedData pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID         xmlPMID            `xml:"PMID"`
	Article      xmlArticle         `xml:"Article"`
	MeshHeadings xmlMeshHeadingList `xml:"MeshHeadingList"`
	KeywordLists []xmlKeywordList   `xml:"KeywordList"`
}

type xmlPMID struct {
	Value string `xml:",chardata"`
}

type xmlArticle struct {
	Journal          xmlJournal             `xml:"Journal"`
	ArticleTitle     xmlInnerContent        `xml:"ArticleTitle"`
	Abstract         xmlAbstract            `xml:"Abstract"`
	AuthorList       xmlAuthorList          `xml:"AuthorList"`
	Language         []string               `xml:"Language"`
	PublicationTypes xmlPublicationTypeList `xml:"PublicationTypeList"`
	Pagination       xmlPagination          `xml:"Pagination"`
}

type xmlJournal struct {
	ISSN            string          `xml:"ISSN"`
	JournalIssue    xmlJournalIssue `xml:"JournalIssue"`
	Title           string          `xml:"Title"`
	ISOAbbreviation string          `xml:"ISOAbbreviation"`
}

type xmlJournalIssue struct {
	Volume  string     `xml:"Volume"`
	Issue   string     `xml:"Issue"`
	PubDate xmlPubDate `xml:"PubDate"`
}

type xmlPubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type xmlInnerContent struct {
	Inner string `xml:",innerxml"`
}

type xmlAbstract struct {
	Texts []xmlAbstractText `xml:"AbstractText"`
}

type xmlAbstractText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type xmlAuthorList struct {
	Complete string      `xml:"CompleteYN,attr"`
	Authors  []xmlAuthor `xml:"Author"`
}

type xmlAuthor struct {
	ValidYN        string `xml:"ValidYN,attr"`
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

type xmlPublicationTypeList struct {
	Types []xmlPublicationType `xml:"PublicationType"`
}

type xmlPublicationType struct {
	UI   string `xml:"UI,attr"`
	Name string `xml:",chardata"`
}

type xmlPagination struct {
	MedlinePgn string `xml:"MedlinePgn"`
}

type xmlMeshHeadingList struct {
	Headings []xmlMeshHeading `xml:"MeshHeading"`
}

type xmlMeshHeading struct {
	Descriptor xmlDescriptorName `xml:"DescriptorName"`
}

type xmlDescriptorName struct {
	UI         string `xml:"UI,attr"`
	MajorTopic string `xml:"MajorTopicYN,attr"`
	Name       string `xml:",chardata"`
}

type xmlKeywordList struct {
	Keywords []xmlInnerContent `xml:"Keyword"`
}

type pubmedData struct {
	ArticleIDs xmlArticleIDList `xml:"ArticleIdList"`
}

type xmlArticleIDList struct {
	IDs []xmlArticleID `xml:"ArticleId"`
}

type xmlArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}
