package utils

import (
	"path/filepath"
	"strings"
)

// ProgramKind classifies a program file by its extension.
type ProgramKind int

const (
	KindSource ProgramKind = iota
	KindBitmap
	KindObject
)

func (k ProgramKind) String() string {
	switch k {
	case KindBitmap:
		return "bitmap"
	case KindObject:
		return "object"
	}
	return "source"
}

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// DetectKind picks the program kind from the file extension. Anything that
// is not an image or an object file is read as source text.
func DetectKind(path string) ProgramKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp", ".png":
		return KindBitmap
	case ".bfo":
		return KindObject
	}
	return KindSource
}

// SiblingPath replaces the extension of path with ext, so "dir/prog.bf"
// becomes "dir/prog.log". A leading dot is not taken for an extension.
func SiblingPath(path, ext string) string {
	base := filepath.Base(path)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return path[:len(path)-len(base)+i] + ext
	}
	return path + ext
}
