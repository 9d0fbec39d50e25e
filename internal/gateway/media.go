package gateway

import (
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

type MediaKind int

const (
	MediaUnknown MediaKind = iota
	MediaImage
	MediaVideo
)

var extAliases = map[string]string{
	"jpeg": "jpg",
	"m4v":  "mp4",
}

// KindOf guesses the media kind of a URL from its file extension.
func KindOf(mediaURL string) MediaKind {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if alias, ok := extAliases[ext]; ok {
		ext = alias
	}
	if ext == "" {
		return MediaUnknown
	}

	switch filetype.GetType(ext).MIME.Type {
	case "image":
		return MediaImage
	case "video":
		return MediaVideo
	}
	return MediaUnknown
}

type MediaSet struct {
	Images  []string
	Videos  []string
	Unknown []string
}

func (m MediaSet) Len() int { return len(m.Images) + len(m.Videos) + len(m.Unknown) }

func ClassifyMedia(media []string) MediaSet {
	var set MediaSet
	for _, m := range media {
		switch KindOf(m) {
		case MediaImage:
			set.Images = append(set.Images, m)
		case MediaVideo:
			set.Videos = append(set.Videos, m)
		default:
			set.Unknown = append(set.Unknown, m)
		}
	}
	return set
}
