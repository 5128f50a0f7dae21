package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefixes separating primary content from derived thumbnails.
const (
	ContentPrefix   = "documents/"
	ThumbnailPrefix = "thumbnails/"
)

// newUUID is replaced in tests.
var newUUID = uuid.NewString

// GenerateKey returns a time-partitioned key of the form
// {yyyy}-{mm}/{dd}/{uuid}.{ext}. Only the lowercase extension of filename is
// used; the name itself never appears in the key.
func GenerateKey(now time.Time, filename string) string {
	key := fmt.Sprintf("%04d-%02d/%02d/%s", now.Year(), int(now.Month()), now.Day(), newUUID())
	if ext := extension(filename); ext != "" {
		key += "." + ext
	}
	return key
}

// ContentKey places a generated key under the content prefix.
func ContentKey(key string) string {
	return ContentPrefix + key
}

// ThumbnailKey returns the thumbnail key parallel to a content key.
func ThumbnailKey(contentKey string) string {
	return ThumbnailPrefix + strings.TrimPrefix(contentKey, ContentPrefix)
}

func extension(filename string) string {
	ext := path.Ext(filename)
	if len(ext) <= 1 {
		return ""
	}
	return strings.ToLower(ext[1:])
}
