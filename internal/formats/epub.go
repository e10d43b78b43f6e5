package formats

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"booklib/internal/bookfile"
)

// EPUB reads OPF metadata from EPUB containers.
type EPUB struct{}

type epubContainer struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles    []string     `xml:"title"`
		Creators  []opfCreator `xml:"creator"`
		Subjects  []string     `xml:"subject"`
		Languages []string     `xml:"language"`
		Metas     []opfMeta    `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
}

type opfCreator struct {
	Name   string `xml:",chardata"`
	FileAs string `xml:"file-as,attr"`
	Role   string `xml:"role,attr"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Name implements Plugin.
func (EPUB) Name() string { return "epub" }

// Extensions implements Plugin.
func (EPUB) Extensions() []string { return []string{"epub"} }

type epubBook struct {
	zr      *zip.Reader
	opfPath string
	pkg     opfPackage
}

func openEPUB(f *bookfile.File) (*epubBook, error) {
	data, err := f.ReadAll()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}

	var container epubContainer
	if err := decodeEntry(zr, "META-INF/container.xml", &container); err != nil {
		return nil, err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, errors.New("epub container lists no package document")
	}

	b := &epubBook{zr: zr, opfPath: container.Rootfiles[0].FullPath}
	if err := decodeEntry(zr, b.opfPath, &b.pkg); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeEntry(zr *zip.Reader, name string, v any) error {
	rc, err := openEntry(zr, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	dec.Strict = false
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func openEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, zf := range zr.File {
		if zf.Name == name {
			return zf.Open()
		}
	}
	return nil, fmt.Errorf("epub entry %s: %w", name, bookfile.ErrNoSuchEntry)
}

// Resolve implements Plugin.
func (EPUB) Resolve(_ context.Context, f *bookfile.File) (*Metadata, error) {
	b, err := openEPUB(f)
	if err != nil {
		return nil, err
	}

	meta := b.pkg.Metadata
	md := &Metadata{Encoding: "utf-8"}
	if len(meta.Titles) > 0 {
		md.Title = strings.TrimSpace(meta.Titles[0])
	}
	if len(meta.Languages) > 0 {
		md.Language = strings.TrimSpace(meta.Languages[0])
	}

	for _, c := range meta.Creators {
		if c.Role != "" && c.Role != "aut" {
			continue
		}
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		md.Authors = append(md.Authors, Author{Name: name, SortKey: strings.TrimSpace(c.FileAs)})
	}

	for _, s := range meta.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			md.Tags = append(md.Tags, s)
		}
	}

	var seriesName, seriesIndex string
	for _, m := range meta.Metas {
		switch {
		case m.Name == "calibre:series":
			seriesName = m.Content
		case m.Name == "calibre:series_index":
			seriesIndex = m.Content
		case m.Property == "belongs-to-collection" && seriesName == "":
			seriesName = m.Value
		case m.Property == "group-position" && seriesIndex == "":
			seriesIndex = m.Value
		}
	}
	if seriesName = strings.TrimSpace(seriesName); seriesName != "" {
		index, _ := strconv.ParseFloat(strings.TrimSpace(seriesIndex), 64)
		md.Series = &Series{Name: seriesName, Index: index}
	}

	return md, nil
}

// ReadCover implements Plugin.
func (EPUB) ReadCover(_ context.Context, f *bookfile.File) ([]byte, error) {
	b, err := openEPUB(f)
	if err != nil {
		return nil, err
	}

	href := b.coverHref()
	if href == "" {
		return nil, ErrNoCover
	}

	rc, err := openEntry(b.zr, path.Join(path.Dir(b.opfPath), href))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *epubBook) coverHref() string {
	var coverID string
	for _, m := range b.pkg.Metadata.Metas {
		if m.Name == "cover" {
			coverID = m.Content
		}
	}

	for _, item := range b.pkg.Manifest.Items {
		if coverID != "" && item.ID == coverID {
			return item.Href
		}
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return item.Href
			}
		}
	}
	return ""
}
