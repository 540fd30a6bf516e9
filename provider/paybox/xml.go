package paybox

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseXMLFields reads a provider XML answer into tag name → text.
// Only leaf elements are kept; the first occurrence of a tag wins.
func ParseXMLFields(body []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	fields := make(map[string]string)

	var (
		text     strings.Builder
		current  string
		hasChild bool
		depth    int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("paybox: malformed xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			current = t.Name.Local
			hasChild = false
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			depth--
			if !hasChild && t.Name.Local == current {
				if _, seen := fields[current]; !seen {
					fields[current] = strings.TrimSpace(text.String())
				}
			}
			hasChild = true
			text.Reset()
		}
	}

	if depth != 0 || len(fields) == 0 {
		return nil, errors.New("paybox: empty or truncated xml response")
	}
	return fields, nil
}

type ackDocument struct {
	XMLName     xml.Name `xml:"response"`
	Status      string   `xml:"pg_status"`
	Description string   `xml:"pg_description"`
	Salt        string   `xml:"pg_salt"`
	Sig         string   `xml:"pg_sig"`
}

func marshalAck(doc ackDocument) []byte {
	out, err := xml.Marshal(doc)
	if err != nil {
		// fields are plain strings, so Marshal cannot fail
		return []byte(xml.Header + "<response><pg_status>error</pg_status></response>")
	}
	return append([]byte(xml.Header), out...)
}
