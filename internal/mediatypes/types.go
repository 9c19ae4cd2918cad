// Package mediatypes holds the extension and MIME knowledge for upload
// validation and HLS delivery.
package mediatypes

// UploadExtensions maps file extensions to whether they are accepted as
// upload sources. Only container formats the encoder reliably demuxes.
var UploadExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// hlsMimeTypes maps the output-tree extensions to their MIME types.
var hlsMimeTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".jpg":  "image/jpeg",
}

// IsUploadable returns true if the extension is an accepted upload format.
// The extension should be lowercase and include the leading dot (e.g. ".mp4").
func IsUploadable(ext string) bool {
	return UploadExtensions[ext]
}

// HLSMimeType returns the MIME type for a file in the output tree, and
// whether the extension is servable at all.
func HLSMimeType(ext string) (string, bool) {
	mime, ok := hlsMimeTypes[ext]
	return mime, ok
}
