package courses

import (
	"math"
	"path"
	"strconv"
	"strings"
)

// FileType is the display category of a file.
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeDoc     FileType = "doc"
	FileTypeImage   FileType = "img"
	FileTypeVideo   FileType = "video"
	FileTypeAudio   FileType = "audio"
	FileTypeArchive FileType = "zip"
	FileTypeDefault FileType = "default"
)

var extensionTypes = map[string]FileType{
	"pdf":  FileTypePDF,
	"doc":  FileTypeDoc,
	"docx": FileTypeDoc,
	"odt":  FileTypeDoc,
	"jpg":  FileTypeImage,
	"jpeg": FileTypeImage,
	"png":  FileTypeImage,
	"gif":  FileTypeImage,
	"svg":  FileTypeImage,
	"webp": FileTypeImage,
	"mp4":  FileTypeVideo,
	"avi":  FileTypeVideo,
	"mov":  FileTypeVideo,
	"wmv":  FileTypeVideo,
	"flv":  FileTypeVideo,
	"webm": FileTypeVideo,
	"mp3":  FileTypeAudio,
	"wav":  FileTypeAudio,
	"flac": FileTypeAudio,
	"aac":  FileTypeAudio,
	"ogg":  FileTypeAudio,
	"zip":  FileTypeArchive,
	"rar":  FileTypeArchive,
	"7z":   FileTypeArchive,
	"tar":  FileTypeArchive,
	"gz":   FileTypeArchive,
}

// FileTypeOf categorizes filename by its extension.
func FileTypeOf(filename string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return FileTypeDefault
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with binary units, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}

	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}
