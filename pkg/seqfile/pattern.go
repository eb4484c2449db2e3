package seqfile

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultPattern renders file numbers as zero-padded 8 digit decimals.
	DefaultPattern = "%08d"

	// DefaultMaxPathLen is the path length ceiling of the flash filesystems
	// this was written for, excluding the terminator.
	DefaultMaxPathLen = 255

	// NoFile is returned by queue operations when there is no file.
	NoFile = 0
)

var (
	ErrInvalidPattern  = errors.New("seqfile: pattern must contain exactly one integer conversion")
	ErrPathTooLong     = errors.New("seqfile: path too long")
	ErrEmptyName       = errors.New("seqfile: pattern rendered an empty name")
	ErrUnconfiguredDir = errors.New("seqfile: directory is unset or the filesystem root")
)

// ValidatePattern checks that pattern holds exactly one integer verb.
// Literal percent signs must be written as %%.
func ValidatePattern(pattern string) error {
	var conversions int
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			continue
		}
		i++
		if i < len(pattern) && pattern[i] == '%' {
			continue
		}

		// width only; fmt scanning has no flags
		for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
			i++
		}
		if i >= len(pattern) {
			return errors.Wrapf(ErrInvalidPattern, "dangling %% in %q", pattern)
		}

		switch pattern[i] {
		case 'd', 'x', 'X', 'o', 'b':
			conversions++
		default:
			return errors.Wrapf(ErrInvalidPattern, "unsupported verb %%%c in %q", pattern[i], pattern)
		}
	}

	if conversions != 1 {
		return errors.Wrapf(ErrInvalidPattern, "%q has %d conversions", pattern, conversions)
	}
	return nil
}

// NameWithOptionalExt appends "." + ext to name when ext is not empty.
func NameWithOptionalExt(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// pathPattern maps file numbers to names and back.
type pathPattern struct {
	pattern    string
	ext        string
	maxPathLen int
}

// stem renders fileNum without any extension.
func (p pathPattern) stem(fileNum int) string {
	return fmt.Sprintf(p.pattern, fileNum)
}

// render formats fileNum through the pattern. A non-nil override replaces the
// configured extension, an empty override drops it.
func (p pathPattern) render(fileNum int, override *string) (string, error) {
	stem := p.stem(fileNum)
	if stem == "" {
		return "", ErrEmptyName
	}

	ext := p.ext
	if override != nil {
		ext = *override
	}

	name := NameWithOptionalExt(stem, ext)
	if len(name) > p.maxPathLen {
		return "", errors.Wrapf(ErrPathTooLong, "name %s", name)
	}
	return name, nil
}

func (p pathPattern) fullPath(dir string, fileNum int, override *string) (string, error) {
	name, err := p.render(fileNum, override)
	if err != nil {
		return "", err
	}

	path := dir + "/" + name
	if len(path) > p.maxPathLen {
		return "", errors.Wrapf(ErrPathTooLong, "path %s", path)
	}
	return path, nil
}

// parseNumber extracts the file number from name regardless of extension.
// The stem must be the canonical rendering of the number, so names that only
// partially scan (e.g. "0000000X") are rejected.
func (p pathPattern) parseNumber(name string) (int, bool) {
	var fileNum int
	if n, err := fmt.Sscanf(name, p.pattern, &fileNum); n != 1 || err != nil {
		return NoFile, false
	}
	if fileNum <= 0 {
		return NoFile, false
	}

	stem := p.stem(fileNum)
	if name != stem && !strings.HasPrefix(name, stem+".") {
		return NoFile, false
	}
	return fileNum, true
}

// parse is parseNumber plus the configured extension check.
func (p pathPattern) parse(name string) (int, bool) {
	fileNum, ok := p.parseNumber(name)
	if !ok {
		return NoFile, false
	}
	if p.ext != "" && name != p.stem(fileNum)+"."+p.ext {
		return NoFile, false
	}
	return fileNum, true
}
