package formats

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"booklib/internal/bookfile"
)

const fb2Sample = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
  <description>
    <title-info>
      <genre>sf</genre>
      <genre>space_opera</genre>
      <author><first-name>Isaac</first-name><middle-name>P.</middle-name><last-name>Asimov</last-name></author>
      <author><nickname>Anonymous</nickname></author>
      <book-title> Foundation </book-title>
      <lang>en</lang>
      <sequence name="Foundation" number="1"/>
      <sequence name="Robots" number="7"/>
      <coverpage><image l:href="#cover.png"/></coverpage>
    </title-info>
  </description>
  <body><section><p>Psychohistory.</p></section></body>
  <binary id="cover.png" content-type="image/png">` + "aGVs\n bG8=" + `</binary>
</FictionBook>`

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const opfCalibre = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Dune</dc:title>
    <dc:language>en</dc:language>
    <dc:creator opf:role="aut" opf:file-as="Herbert, Frank">Frank Herbert</dc:creator>
    <dc:creator opf:role="ill">Some Illustrator</dc:creator>
    <dc:subject>Science Fiction</dc:subject>
    <meta name="calibre:series" content="Dune Chronicles"/>
    <meta name="calibre:series_index" content="1.0"/>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
</package>`

const opfEPUB3 = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Emma</dc:title>
    <dc:creator>Jane Austen</dc:creator>
    <meta property="belongs-to-collection">Novels</meta>
    <meta property="group-position">4</meta>
  </metadata>
  <manifest>
    <item id="c" href="cover.png" media-type="image/png" properties="cover-image"/>
  </manifest>
</package>`

func writeFile(t *testing.T, name string, data []byte) *bookfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return bookfile.Physical(path)
}

func writeEPUB(t *testing.T, name string, entries map[string]string) *bookfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for entryName, body := range entries {
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return bookfile.Physical(path)
}

func TestFB2Resolve(t *testing.T) {
	t.Parallel()

	f := writeFile(t, "foundation.fb2", []byte(fb2Sample))
	md, err := FB2{}.Resolve(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, "Foundation", md.Title)
	assert.Equal(t, "en", md.Language)
	assert.Equal(t, "utf-8", md.Encoding)
	assert.Equal(t, []Author{
		{Name: "Isaac P. Asimov", SortKey: "Asimov"},
		{Name: "Anonymous", SortKey: "Anonymous"},
	}, md.Authors)
	assert.Equal(t, []string{"Fiction/Science Fiction", "space_opera"}, md.Tags)
	assert.Equal(t, &Series{Name: "Foundation", Index: 1}, md.Series)
}

func TestFB2ResolveLegacyEncoding(t *testing.T) {
	t.Parallel()

	title, err := charmap.Windows1251.NewEncoder().String("Война и мир")
	require.NoError(t, err)
	doc := `<?xml version="1.0" encoding="windows-1251"?><FictionBook><description><title-info>` +
		`<book-title>` + title + `</book-title><lang>ru</lang></title-info></description></FictionBook>`

	md, err := FB2{}.Resolve(context.Background(), writeFile(t, "war.fb2", []byte(doc)))
	require.NoError(t, err)
	assert.Equal(t, "Война и мир", md.Title)
	assert.Equal(t, "windows-1251", md.Encoding)
}

func TestFB2ResolveRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := FB2{}.Resolve(context.Background(), writeFile(t, "broken.fb2", []byte("not xml at all")))
	assert.Error(t, err)
}

func TestFB2ReadCover(t *testing.T) {
	t.Parallel()

	data, err := FB2{}.ReadCover(context.Background(), writeFile(t, "foundation.fb2", []byte(fb2Sample)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	noCover := `<FictionBook><description><title-info><book-title>Plain</book-title></title-info></description></FictionBook>`
	_, err = FB2{}.ReadCover(context.Background(), writeFile(t, "plain.fb2", []byte(noCover)))
	assert.ErrorIs(t, err, ErrNoCover)
}

func TestEPUBResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opf  string
		want *Metadata
	}{
		{
			name: "calibre metadata",
			opf:  opfCalibre,
			want: &Metadata{
				Title:    "Dune",
				Language: "en",
				Encoding: "utf-8",
				Authors:  []Author{{Name: "Frank Herbert", SortKey: "Herbert, Frank"}},
				Tags:     []string{"Science Fiction"},
				Series:   &Series{Name: "Dune Chronicles", Index: 1},
			},
		},
		{
			name: "epub3 collection",
			opf:  opfEPUB3,
			want: &Metadata{
				Title:    "Emma",
				Encoding: "utf-8",
				Authors:  []Author{{Name: "Jane Austen"}},
				Series:   &Series{Name: "Novels", Index: 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := writeEPUB(t, "book.epub", map[string]string{
				"mimetype":               "application/epub+zip",
				"META-INF/container.xml": containerXML,
				"OEBPS/content.opf":      tt.opf,
			})
			md, err := EPUB{}.Resolve(context.Background(), f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, md)
		})
	}
}

func TestEPUBResolveWithoutContainer(t *testing.T) {
	t.Parallel()

	f := writeEPUB(t, "broken.epub", map[string]string{"mimetype": "application/epub+zip"})
	_, err := EPUB{}.Resolve(context.Background(), f)
	assert.ErrorIs(t, err, bookfile.ErrNoSuchEntry)
}

func TestEPUBReadCover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opf     string
		entry   string
		wantErr error
	}{
		{name: "meta cover", opf: opfCalibre, entry: "OEBPS/images/cover.jpg"},
		{name: "cover-image property", opf: opfEPUB3, entry: "OEBPS/cover.png"},
		{
			name:    "no cover",
			opf:     `<package><metadata><title>None</title></metadata><manifest/></package>`,
			wantErr: ErrNoCover,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries := map[string]string{
				"META-INF/container.xml": containerXML,
				"OEBPS/content.opf":      tt.opf,
			}
			if tt.entry != "" {
				entries[tt.entry] = "image bytes"
			}
			data, err := EPUB{}.ReadCover(context.Background(), writeEPUB(t, "book.epub", entries))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "image bytes", string(data))
		})
	}
}

func TestCollectionDispatch(t *testing.T) {
	t.Parallel()

	c := Default()
	ctx := context.Background()

	fb2 := writeFile(t, "foundation.FB2", []byte(fb2Sample))
	assert.True(t, c.Supports(fb2))
	md, err := c.Resolve(ctx, fb2)
	require.NoError(t, err)
	assert.Equal(t, "Foundation", md.Title)

	cover, err := c.ReadCover(ctx, fb2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), cover)

	txt := writeFile(t, "notes.txt", []byte("plain"))
	assert.False(t, c.Supports(txt))
	_, err = c.Resolve(ctx, txt)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = c.ReadCover(ctx, txt)
	assert.ErrorIs(t, err, ErrUnsupported)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Resolve(cancelled, fb2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectionLaterPluginWins(t *testing.T) {
	t.Parallel()

	c := NewCollection(FB2{}, overridePlugin{})
	f := writeFile(t, "foundation.fb2", []byte(fb2Sample))
	md, err := c.Resolve(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "override", md.Title)
	assert.Equal(t, "override", c.Plugin(f).Name())
}

type overridePlugin struct{}

func (overridePlugin) Name() string         { return "override" }
func (overridePlugin) Extensions() []string { return []string{"fb2"} }
func (overridePlugin) Resolve(context.Context, *bookfile.File) (*Metadata, error) {
	return &Metadata{Title: "override"}, nil
}
func (overridePlugin) ReadCover(context.Context, *bookfile.File) ([]byte, error) {
	return nil, ErrNoCover
}
