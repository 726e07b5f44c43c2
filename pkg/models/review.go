package models

import "time"

type AnimeReview struct {
	ID        string    `json:"_id"`
	User      User      `json:"user"`
	Anime     Anime     `json:"anime"`
	Score     int       `json:"score"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type MangaReview struct {
	ID        string    `json:"_id"`
	User      User      `json:"user"`
	Manga     Manga     `json:"manga"`
	Score     int       `json:"score"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}
