package model

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// DefaultImageExt is used when an image URL path carries no extension.
const DefaultImageExt = ".jpg"

// imageFilePrefix is the prefix of every downloaded image file name.
const imageFilePrefix = "img_"

// PageVisit is an entry of a crawl frontier.
// Depth is the number of same-origin hops still allowed below this page.
type PageVisit struct {
	// URL is the absolute page URL.
	URL string

	// Depth is the remaining depth. 0 means the page is processed but its
	// links are not followed.
	Depth int
}

// ImageReference is an image discovered while parsing a page.
type ImageReference struct {
	// URL is the resolved absolute image URL.
	URL string

	// PageURL is the page the image was found on.
	PageURL string
}

// MetadataRecord is one row of the metadata file.
// There is exactly one record per kept image, in completion order.
type MetadataRecord struct {
	// Filename is the base name of the image file in the output directory.
	Filename string `json:"filename"`

	// ImageURL is the source URL the bytes were downloaded from.
	ImageURL string `json:"image_url"`

	// PageURL is the page that referenced the image.
	PageURL string `json:"page_url"`

	// ContentHash is the normalized content fingerprint of the image.
	// Empty for records written by versions that did not hash content.
	ContentHash string `json:"content_hash"`
}

// ImageInfo holds properties observed while decoding a downloaded image.
type ImageInfo struct {
	// Filename matches MetadataRecord.Filename.
	Filename string `json:"filename"`

	// Format is the decoder name reported by image.Decode (jpeg, png, ...).
	Format string `json:"format"`

	// Width and Height are the decoded pixel dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Size is the number of bytes written to disk.
	Size int64 `json:"size"`

	// Camera is "Make Model" from EXIF, if present.
	Camera string `json:"camera,omitempty"`

	// TakenAt is the EXIF DateTimeOriginal value, if present.
	TakenAt string `json:"taken_at,omitempty"`
}

// ImageFilename builds the output file name for an allocated index.
// The extension is taken from the URL path (lowercased) or DefaultImageExt.
func ImageFilename(index int, imageURL string) string {
	return fmt.Sprintf("%s%06d%s", imageFilePrefix, index, ImageExt(imageURL))
}

// ImageExt returns the lowercased extension of the URL path, or
// DefaultImageExt when the path has none.
func ImageExt(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || ext == "." {
		return DefaultImageExt
	}
	return ext
}

// ParseImageIndex extracts the index from a name produced by ImageFilename.
// The second return value is false for names that do not follow the pattern.
func ParseImageIndex(filename string) (int, bool) {
	name := strings.TrimPrefix(path.Base(filename), imageFilePrefix)
	if name == path.Base(filename) {
		return 0, false
	}
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		name = name[:dot]
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
