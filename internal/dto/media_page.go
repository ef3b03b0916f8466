package dto

import "objectvision/internal/model"

// MediaPage is one page of the gallery.
type MediaPage struct {
	Media       []model.Media `json:"media"`
	MediaDir    string        `json:"mediaDir"`
	Size        int64         `json:"size"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"limit"`
}
