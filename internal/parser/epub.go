package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/isbn"
)

// EPUBSource reads an EPUB archive looking for ISBN identifiers.
// The Dublin Core identifier block in the package document is checked
// first; when it carries no valid ISBN the leading spine documents are
// scanned the same way PDF pages are.
type EPUBSource struct {
	path   string
	docs   int
	logger *slog.Logger
}

// Path returns the file this source reads.
func (s *EPUBSource) Path() string {
	return s.path
}

// Identifiers extracts the first valid ISBN-10 and ISBN-13 from the
// archive. A corrupted file logs a warning and yields an empty pair.
func (s *EPUBSource) Identifiers() (isbn10, isbn13 string) {
	rc, err := zip.OpenReader(s.path)
	if err != nil {
		s.logger.Warn("unreadable epub", "path", s.path, "error", err)
		return "", ""
	}
	defer rc.Close()

	files := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		files[f.Name] = f
	}

	pkg, opfDir, err := readPackage(files)
	if err != nil {
		s.logger.Warn("malformed epub package", "path", s.path, "error", err)
		return "", ""
	}

	// Well-formed books declare their ISBN as a dc:identifier.
	for _, raw := range pkg.Metadata.Identifiers {
		switch normalized := isbn.FromIdentifier(cleanIdentifier(raw)); len(normalized) {
		case 10:
			if isbn10 == "" {
				isbn10 = normalized
			}
		case 13:
			if isbn13 == "" {
				isbn13 = normalized
			}
		}
	}
	if isbn10 != "" || isbn13 != "" {
		return isbn10, isbn13
	}

	// Fall back to scanning the leading spine documents.
	hrefs := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefs[item.ID] = item.Href
	}

	scanned := 0
	for _, ref := range pkg.Spine.ItemRefs {
		if scanned >= s.docs {
			break
		}
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := files[path.Join(opfDir, href)]
		if !ok {
			continue
		}

		text, err := readZipFile(f)
		if err != nil {
			s.logger.Debug("skipping unreadable document", "path", s.path, "doc", href, "error", err)
			continue
		}
		scanned++

		found10, found13 := isbn.Extract(text)
		if isbn10 == "" {
			isbn10 = found10
		}
		if isbn13 == "" {
			isbn13 = found13
		}
		if isbn10 != "" && isbn13 != "" {
			break
		}
	}

	return isbn10, isbn13
}

// opfPackage is the subset of the EPUB package document we care about.
type opfPackage struct {
	Metadata struct {
		Identifiers []string `xml:"identifier"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type containerXML struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// readPackage locates the OPF document via META-INF/container.xml and
// parses it. Returns the package and the directory OPF hrefs resolve from.
func readPackage(files map[string]*zip.File) (*opfPackage, string, error) {
	containerFile, ok := files["META-INF/container.xml"]
	if !ok {
		return nil, "", fmt.Errorf("missing META-INF/container.xml")
	}
	raw, err := readZipFile(containerFile)
	if err != nil {
		return nil, "", fmt.Errorf("read container: %w", err)
	}

	var container containerXML
	if err := xml.Unmarshal([]byte(raw), &container); err != nil {
		return nil, "", fmt.Errorf("parse container: %w", err)
	}
	if len(container.Rootfiles.Rootfile) == 0 {
		return nil, "", fmt.Errorf("container declares no rootfile")
	}

	opfPath := container.Rootfiles.Rootfile[0].FullPath
	opfFile, ok := files[opfPath]
	if !ok {
		return nil, "", fmt.Errorf("missing package document %q", opfPath)
	}
	raw, err = readZipFile(opfFile)
	if err != nil {
		return nil, "", fmt.Errorf("read package document: %w", err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal([]byte(raw), &pkg); err != nil {
		return nil, "", fmt.Errorf("parse package document: %w", err)
	}

	return &pkg, path.Dir(opfPath), nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// cleanIdentifier strips URN prefixes and separators from a dc:identifier
// value, e.g. "urn:isbn:978-0-306-40615-7" becomes "9780306406157".
func cleanIdentifier(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if (ch >= '0' && ch <= '9') || ch == 'x' || ch == 'X' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
