package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const maxTitleLength = 200

// Validate checks the item against the content model before it is persisted.
func (i SaleItem) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ID,
			validation.Required.Error("id is required"),
			is.UUID.Error("id must be a UUID"),
		),
		validation.Field(&i.Title,
			validation.Length(0, maxTitleLength).Error("title must be at most 200 characters"),
		),
		validation.Field(&i.Price,
			validation.Min(0).Error("price must not be negative"),
		),
		validation.Field(&i.Photos,
			validation.Length(0, MaxPhotos).Error("an item holds at most 5 photos"),
			validation.Each(validation.By(imageDataURL)),
		),
	)
}

func imageDataURL(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("photo must be a string")
	}
	if !strings.HasPrefix(s, "data:image/") || !strings.Contains(s, ",") {
		return errors.New("photo must be an image data URL")
	}
	return nil
}
