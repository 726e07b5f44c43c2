package models

// Title fields follow the Jikan API structure, same as the source data
// these catalogs are loaded from.

type Anime struct {
	ID            string         `json:"_id"`
	Title         string         `json:"title"`
	TitleEnglish  string         `json:"title_english,omitempty"`
	TitleJapanese string         `json:"title_japanese,omitempty"`
	TitleSynonyms []string       `json:"title_synonyms,omitempty"`
	Type          string         `json:"type,omitempty"`
	Episodes      int            `json:"episodes,omitempty"`
	Genres        []Genre        `json:"genres,omitempty"`
	Demographics  []Demographic  `json:"demographics,omitempty"`
	Producers     []Producer     `json:"producers,omitempty"`
	Synopsis      string         `json:"synopsis,omitempty"`
	Status        string         `json:"status,omitempty"`
	Year          int            `json:"year,omitempty"`
	Score         float64        `json:"score,omitempty"`
	Rank          int            `json:"rank,omitempty"`
	Images        map[string]any `json:"images,omitempty"`
}

type Manga struct {
	ID            string         `json:"_id"`
	Title         string         `json:"title"`
	TitleEnglish  string         `json:"title_english,omitempty"`
	TitleJapanese string         `json:"title_japanese,omitempty"`
	TitleSynonyms []string       `json:"title_synonyms,omitempty"`
	Type          string         `json:"type,omitempty"`
	Chapters      int            `json:"chapters,omitempty"`
	Volumes       int            `json:"volumes,omitempty"`
	Genres        []Genre        `json:"genres,omitempty"`
	Demographics  []Demographic  `json:"demographics,omitempty"`
	Producers     []Producer     `json:"producers,omitempty"`
	Synopsis      string         `json:"synopsis,omitempty"`
	Status        string         `json:"status,omitempty"`
	Year          int            `json:"year,omitempty"`
	Score         float64        `json:"score,omitempty"`
	Rank          int            `json:"rank,omitempty"`
	Images        map[string]any `json:"images,omitempty"`
}
