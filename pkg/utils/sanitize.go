package utils

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength = 255
	MaxTagLength  = 50
)

var (
	ErrEmptyName   = errors.New("name must not be empty")
	ErrInvalidURL  = errors.New("url must be an absolute http or https url")
	ErrNameTooLong = errors.New("name is too long")
)

// SanitizeName strips control characters and path separators from a user
// supplied file or folder name.
func SanitizeName(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case unicode.IsControl(r):
		case r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(cleaned) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return cleaned, nil
}

// SanitizeTags trims each tag, truncates long ones and keeps at most max.
// Duplicates are left for the caller's tag list type to collapse.
func SanitizeTags(values []string, max int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, v))
		if v == "" {
			continue
		}
		if utf8.RuneCountInString(v) > MaxTagLength {
			v = string([]rune(v)[:MaxTagLength])
		}
		out = append(out, v)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// ValidateFetchURL accepts only absolute http(s) URLs with a host.
func ValidateFetchURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// NameFromURL derives a file name from the last path segment of u.
func NameFromURL(u *url.URL) string {
	segment := u.Path
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	if name, err := SanitizeName(segment); err == nil {
		return name
	}
	return "download"
}
