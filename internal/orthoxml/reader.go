package orthoxml

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Reader pulls structural events out of an OrthoXML document.
type Reader struct {
	dec        *xml.Decoder
	file       *os.File
	gzipReader *gzip.Reader

	rootSeen  bool
	inSpecies bool
	groups    int // open orthologGroup/paralogGroup elements
	done      bool
}

// NewReader opens an OrthoXML file. Gzipped files are detected by their magic
// bytes and "-" reads standard input.
func NewReader(path string) (*Reader, error) {
	if path == "-" {
		return NewReaderFromReader(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open orthoxml file: %w", err)
	}

	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, fmt.Errorf("read orthoxml header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek orthoxml file: %w", err)
	}

	r := &Reader{file: file}
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.dec = xml.NewDecoder(bufio.NewReader(r.gzipReader))
	} else {
		r.dec = xml.NewDecoder(bufio.NewReader(file))
	}
	return r, nil
}

// NewReaderFromReader creates a reader over an uncompressed document.
func NewReaderFromReader(rd io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(rd)}
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Line returns the current line in the document.
func (r *Reader) Line() int {
	line, _ := r.dec.InputPos()
	return line
}

// Next returns the next structural event, or nil, nil when the document ends.
func (r *Reader) Next() (*Event, error) {
	if r.done {
		return nil, nil
	}
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			r.done = true
			if !r.rootSeen {
				return nil, &ParseError{Line: r.Line(), Message: "no orthoXML root element"}
			}
			return nil, nil
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return nil, &ParseError{Line: syn.Line, Message: syn.Msg}
			}
			return nil, fmt.Errorf("read orthoxml token: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev, err := r.start(t)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				return ev, nil
			}
		case xml.EndElement:
			if ev := r.end(t); ev != nil {
				return ev, nil
			}
		}
	}
}

func (r *Reader) start(t xml.StartElement) (*Event, error) {
	line := r.Line()
	if !r.rootSeen {
		if t.Name.Local != "orthoXML" {
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("expected orthoXML root element, found <%s>", t.Name.Local)}
		}
		r.rootSeen = true
		return nil, nil
	}

	switch t.Name.Local {
	case "species":
		name := attr(t, "name")
		if name == "" {
			return nil, &ParseError{Line: line, Message: "species without name"}
		}
		r.inSpecies = true
		return &Event{Kind: SpeciesStart, Line: line, Name: name, TaxID: attr(t, "NCBITaxId")}, nil

	case "gene":
		if !r.inSpecies {
			return nil, nil
		}
		ev := &Event{Kind: GeneRecord, Line: line}
		for _, a := range t.Attr {
			switch a.Name.Local {
			case "id":
				ev.ID = a.Value
			case "geneId":
				ev.GeneID = a.Value
			case "protId":
				ev.ProtID = a.Value
			case "transcriptId":
				ev.TranscriptID = a.Value
			default:
				if ev.Extra == nil {
					ev.Extra = make(map[string]string)
				}
				ev.Extra[a.Name.Local] = a.Value
			}
		}
		if ev.ID == "" {
			return nil, &ParseError{Line: line, Message: "gene without id"}
		}
		return ev, nil

	case "orthologGroup":
		r.groups++
		return &Event{Kind: GroupStart, Line: line, ID: attr(t, "id")}, nil

	case "paralogGroup":
		r.groups++
		return &Event{Kind: ParalogStart, Line: line}, nil

	case "geneRef":
		id := attr(t, "id")
		if id == "" {
			return nil, &ParseError{Line: line, Message: "geneRef without id"}
		}
		return &Event{Kind: GeneRef, Line: line, ID: id}, nil

	case "property":
		if r.groups == 0 {
			return nil, nil
		}
		name := attr(t, "name")
		if name == "" {
			return nil, &ParseError{Line: line, Message: "property without name"}
		}
		return &Event{Kind: Property, Line: line, Name: name, Value: attr(t, "value")}, nil

	case "score":
		if r.groups == 0 {
			return nil, nil
		}
		id := attr(t, "id")
		if id == "" {
			return nil, &ParseError{Line: line, Message: "score without id"}
		}
		v, err := strconv.ParseFloat(attr(t, "value"), 64)
		if err != nil {
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("invalid value for score %s: %q", id, attr(t, "value"))}
		}
		return &Event{Kind: Score, Line: line, ID: id, ScoreValue: v}, nil

	case "notes":
		if err := r.dec.Skip(); err != nil {
			return nil, fmt.Errorf("skip notes: %w", err)
		}
	}
	return nil, nil
}

func (r *Reader) end(t xml.EndElement) *Event {
	line := r.Line()
	switch t.Name.Local {
	case "species":
		r.inSpecies = false
		return &Event{Kind: SpeciesEnd, Line: line}
	case "orthologGroup":
		r.groups--
		return &Event{Kind: GroupEnd, Line: line}
	case "paralogGroup":
		r.groups--
		return &Event{Kind: ParalogEnd, Line: line}
	}
	return nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
