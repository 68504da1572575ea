// Package xmltv builds and merges XMLTV guide documents.
package xmltv

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"
)

// TimeLayout is the XMLTV start/stop format. Times are always written in UTC.
const TimeLayout = "20060102150405 -0700"

// FormatTime renders t as "YYYYMMDDHHMMSS +0000".
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Document is a <tv> root.
type Document struct {
	XMLName    xml.Name    `xml:"tv"`
	Generator  string      `xml:"generator-info-name,attr,omitempty"`
	Channels   []Channel   `xml:"channel"`
	Programmes []Programme `xml:"programme"`
}

type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        *Icon  `xml:"icon,omitempty"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   Text   `xml:"title"`
	Desc    *Text  `xml:"desc,omitempty"`
}

type Text struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Encode writes doc with an XML declaration.
func Encode(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Bytes is Encode into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type rawNode struct {
	XMLName  xml.Name   `xml:""`
	Attrs    []xml.Attr `xml:",any,attr"`
	InnerXML string     `xml:",innerxml"`
}

// ErrNoRoot means a source had no <tv> element.
var ErrNoRoot = errors.New("xmltv root <tv> not found")

// Merger concatenates the children of several <tv> roots into one document.
type Merger struct {
	w       io.Writer
	enc     *xml.Encoder
	started bool
	sources int
}

// NewMerger writes the merged document to w. Call Close to finish it.
func NewMerger(w io.Writer, generator string) *Merger {
	m := &Merger{w: w, enc: xml.NewEncoder(w)}
	io.WriteString(w, xml.Header)
	root := xml.StartElement{Name: xml.Name{Local: "tv"}}
	if generator != "" {
		root.Attr = append(root.Attr, xml.Attr{Name: xml.Name{Local: "generator-info-name"}, Value: generator})
	}
	m.enc.EncodeToken(root)
	m.started = true
	return m
}

// Add copies every child of src's <tv> root. A source that fails to parse
// contributes nothing.
func (m *Merger) Add(src io.Reader) error {
	nodes, err := readChildren(src)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := m.enc.Encode(n); err != nil {
			return err
		}
	}
	m.sources++
	return m.enc.Flush()
}

// Sources is the number of sources merged so far.
func (m *Merger) Sources() int { return m.sources }

// Close ends the root element.
func (m *Merger) Close() error {
	if !m.started {
		return nil
	}
	m.started = false
	if err := m.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "tv"}}); err != nil {
		return err
	}
	if err := m.enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(m.w, "\n")
	return err
}

func readChildren(src io.Reader) ([]rawNode, error) {
	dec := xml.NewDecoder(src)
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoRoot
			}
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "tv" {
			return nil, fmt.Errorf("unexpected root <%s>: %w", start.Name.Local, ErrNoRoot)
		}
		break
	}
	var nodes []rawNode
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var n rawNode
			if err := dec.DecodeElement(&n, &t); err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case xml.EndElement:
			if t.Name.Local == "tv" {
				return nodes, nil
			}
		}
	}
}
