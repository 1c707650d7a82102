package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	lowerAlphaNumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// extensions maps accepted upload content types to file extensions
var extensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Extension returns the extension for contentType, or "" if it is not an accepted upload type
func Extension(contentType string) string {
	return extensions[contentType]
}

// ObjectKey generates a storage key for an upload
// Format: users/{userID}/{yyyy}/{mm}/{uuid}{ext}
// The client file name is never used, only its content type.
func ObjectKey(userID uint, contentType string, now time.Time) string {
	return path.Join(
		"users",
		fmt.Sprintf("%d", userID),
		now.UTC().Format("2006"),
		now.UTC().Format("01"),
		uuid.NewString()+Extension(contentType),
	)
}

// ImportBatchID generates a short identifier used to correlate log lines of one import
// Format: imp_ + 12 characters lowercase alphanumeric
func ImportBatchID() (string, error) {
	s, err := randomString(12, lowerAlphaNumeric)
	if err != nil {
		return "", err
	}
	return "imp_" + s, nil
}

// SanitizeFileName keeps a display-safe version of a client file name
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}

// randomString generates a random string of given length from the given charset
func randomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}
