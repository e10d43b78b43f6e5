package formats

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"booklib/internal/bookfile"
)

// FB2 reads FictionBook 2 documents.
type FB2 struct{}

type fb2Document struct {
	Description struct {
		TitleInfo fb2TitleInfo `xml:"title-info"`
	} `xml:"description"`
	Binaries []fb2Binary `xml:"binary"`
}

type fb2TitleInfo struct {
	Genres    []string      `xml:"genre"`
	Authors   []fb2Author   `xml:"author"`
	BookTitle string        `xml:"book-title"`
	Lang      string        `xml:"lang"`
	Sequences []fb2Sequence `xml:"sequence"`
	Coverpage struct {
		Images []struct {
			Href string `xml:"href,attr"`
		} `xml:"image"`
	} `xml:"coverpage"`
}

type fb2Author struct {
	FirstName  string `xml:"first-name"`
	MiddleName string `xml:"middle-name"`
	LastName   string `xml:"last-name"`
	Nickname   string `xml:"nickname"`
}

type fb2Sequence struct {
	Name   string `xml:"name,attr"`
	Number string `xml:"number,attr"`
}

type fb2Binary struct {
	ID          string `xml:"id,attr"`
	ContentType string `xml:"content-type,attr"`
	Data        string `xml:",chardata"`
}

// genreTags maps common FB2 genre codes onto the tag hierarchy.
var genreTags = map[string]string{
	"sf":                 "Fiction/Science Fiction",
	"sf_fantasy":         "Fiction/Fantasy",
	"sf_horror":          "Fiction/Horror",
	"sf_history":         "Fiction/Alternative History",
	"det_classic":        "Fiction/Detective",
	"detective":          "Fiction/Detective",
	"prose_classic":      "Fiction/Classics",
	"prose_contemporary": "Fiction/Contemporary",
	"adventure":          "Fiction/Adventure",
	"poetry":             "Poetry",
	"sci_history":        "Non-fiction/History",
	"sci_philosophy":     "Non-fiction/Philosophy",
	"comp_programming":   "Non-fiction/Computers/Programming",
	"child_tale":         "Children/Fairy Tales",
	"reference":          "Reference",
}

// Name implements Plugin.
func (FB2) Name() string { return "fb2" }

// Extensions implements Plugin.
func (FB2) Extensions() []string { return []string{"fb2"} }

func (FB2) parse(f *bookfile.File) (*fb2Document, string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	encoding := "utf-8"
	dec := xml.NewDecoder(rc)
	dec.Strict = false
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unknown charset %q: %w", label, err)
		}
		if name, err := htmlindex.Name(enc); err == nil {
			encoding = name
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc fb2Document
	if err := dec.Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("parse fb2: %w", err)
	}
	return &doc, encoding, nil
}

// Resolve implements Plugin.
func (p FB2) Resolve(_ context.Context, f *bookfile.File) (*Metadata, error) {
	doc, encoding, err := p.parse(f)
	if err != nil {
		return nil, err
	}

	info := doc.Description.TitleInfo
	md := &Metadata{
		Title:    strings.TrimSpace(info.BookTitle),
		Language: strings.TrimSpace(info.Lang),
		Encoding: encoding,
	}

	for _, a := range info.Authors {
		parts := make([]string, 0, 3)
		for _, s := range []string{a.FirstName, a.MiddleName, a.LastName} {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		name := strings.Join(parts, " ")
		sortKey := strings.TrimSpace(a.LastName)
		if name == "" {
			name = strings.TrimSpace(a.Nickname)
			sortKey = name
		}
		if name != "" {
			md.Authors = append(md.Authors, Author{Name: name, SortKey: sortKey})
		}
	}

	for _, g := range info.Genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if tag, ok := genreTags[g]; ok {
			md.Tags = append(md.Tags, tag)
		} else {
			md.Tags = append(md.Tags, g)
		}
	}

	for _, s := range info.Sequences {
		if name := strings.TrimSpace(s.Name); name != "" {
			index, _ := strconv.ParseFloat(strings.TrimSpace(s.Number), 64)
			md.Series = &Series{Name: name, Index: index}
			break
		}
	}

	return md, nil
}

// ReadCover implements Plugin.
func (p FB2) ReadCover(_ context.Context, f *bookfile.File) ([]byte, error) {
	doc, _, err := p.parse(f)
	if err != nil {
		return nil, err
	}

	images := doc.Description.TitleInfo.Coverpage.Images
	if len(images) == 0 {
		return nil, ErrNoCover
	}
	id := strings.TrimPrefix(images[0].Href, "#")

	for _, b := range doc.Binaries {
		if b.ID != id {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(b.Data), ""))
		if err != nil {
			return nil, fmt.Errorf("decode cover %q: %w", id, err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, ErrNoCover
		}
		return data, nil
	}
	return nil, ErrNoCover
}
