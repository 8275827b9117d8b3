// Package compress packs and unpacks single CSV files in zip and tar archives.
package compress

import (
	"fmt"
	"io"
)

const (
	TypeZip = "zip"
	TypeTar = "tar"
)

// NewReader returns the first CSV file found in the archive read from r.
func NewReader(archiveType string, r io.ReadCloser) (io.ReadCloser, error) {
	switch archiveType {
	case TypeZip:
		zr, err := NewZipReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case TypeTar:
		tr, err := NewTarReader(r)
		if err != nil {
			return nil, err
		}
		return tr, nil
	default:
		r.Close()
		return nil, fmt.Errorf("unsupported archive type %q", archiveType)
	}
}

// NewWriter returns a writer whose content ends up as fileName inside an
// archive written to w. The archive is complete only after Close.
func NewWriter(archiveType string, w io.Writer, fileName string) (io.WriteCloser, error) {
	switch archiveType {
	case TypeZip:
		zw, err := NewZipWriter(w, fileName)
		if err != nil {
			return nil, err
		}
		return zw, nil
	case TypeTar:
		return NewTarWriter(w, fileName), nil
	default:
		return nil, fmt.Errorf("unsupported archive type %q", archiveType)
	}
}

// ContentType is the response media type of an archive type.
func ContentType(archiveType string) string {
	if archiveType == TypeTar {
		return "application/x-tar"
	}
	return "application/zip"
}
