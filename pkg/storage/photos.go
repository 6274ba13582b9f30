package storage

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"moveout/pkg/errors"
	"moveout/pkg/models"
)

// Photo is a decoded listing photo
type Photo struct {
	ContentType string
	Data        []byte
}

// DecodeDataURL decodes an RFC 2397 data URL such as "data:image/jpeg;base64,...".
func DecodeDataURL(s string) (*Photo, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}

	isBase64 := false
	contentType := "text/plain"
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			contentType = part
		case part == "base64":
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop padding
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, fmt.Errorf("invalid base64 payload: %w", err)
			}
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		data = []byte(unescaped)
	}

	return &Photo{ContentType: contentType, Data: data}, nil
}

// ItemPhoto returns the decoded photo at index for an item
func ItemPhoto(item *models.SaleItem, index int) (*Photo, error) {
	if index < 0 || index >= len(item.Photos) {
		return nil, errors.ErrPhotoNotFound.
			WithContext("id", item.ID).
			WithContext("index", index)
	}
	photo, err := DecodeDataURL(item.Photos[index])
	if err != nil {
		return nil, errors.ErrCorruptRecord.WithCause(err).
			WithContext("id", item.ID).
			WithContext("index", index)
	}
	return photo, nil
}
