package download

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifFormats are the decoder names whose files commonly carry EXIF.
var exifFormats = map[string]bool{
	"jpeg": true,
	"tiff": true,
	"webp": true,
}

// exifInfo holds the EXIF fields kept in the image catalog.
type exifInfo struct {
	Camera  string
	TakenAt string
}

// readEXIF extracts camera make/model and capture time. Images without
// EXIF, or with EXIF that does not parse, yield an empty result.
func readEXIF(data []byte, format string) exifInfo {
	if !exifFormats[format] {
		return exifInfo{}
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return exifInfo{}
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return exifInfo{}
	}

	var maker, model, original, modified string
	for _, entry := range entries {
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		switch entry.TagName {
		case "Make":
			maker = value
		case "Model":
			model = value
		case "DateTimeOriginal":
			original = value
		case "DateTime":
			modified = value
		}
	}

	info := exifInfo{TakenAt: original}
	if info.TakenAt == "" {
		info.TakenAt = modified
	}
	switch {
	case maker != "" && strings.HasPrefix(model, maker):
		// Many vendors repeat the make in the model string.
		info.Camera = model
	case maker != "" && model != "":
		info.Camera = maker + " " + model
	default:
		info.Camera = maker + model
	}
	return info
}
