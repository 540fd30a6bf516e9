package paybox

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentTypeXML  = "application/xml; charset=utf-8"
	contentTypeJSON = "application/json"

	descAccepted         = "payment accepted"
	descDeclined         = "payment declined"
	descInvalidSignature = "invalid signature"
	descMalformed        = "malformed callback"
	descInternal         = "internal error"
)

// Ack is the response a callback must return to the provider
type Ack struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ScriptName is the last path segment of the callback route, "result" if none
func ScriptName(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "result"
	}
	return path
}

// legacyAck signs {pg_description, pg_salt, pg_status} with the script name
func legacyAck(code int, status, description, scriptName, secret string) *Ack {
	salt, err := NewSalt()
	if err != nil {
		return legacyInternalError()
	}

	doc := ackDocument{Status: status, Description: description, Salt: salt}
	doc.Sig = SignLegacy(scriptName, map[string]string{
		"pg_status":      doc.Status,
		"pg_description": doc.Description,
		"pg_salt":        doc.Salt,
	}, secret)

	return &Ack{StatusCode: code, ContentType: contentTypeXML, Body: marshalAck(doc)}
}

// legacyInternalError is unsigned on purpose: pg_sig stays empty
func legacyInternalError() *Ack {
	return &Ack{
		StatusCode:  http.StatusInternalServerError,
		ContentType: contentTypeXML,
		Body:        marshalAck(ackDocument{Status: "error", Description: descInternal}),
	}
}

func jsonAck(code int, status string) *Ack {
	body, _ := json.Marshal(map[string]string{"status": status})
	return &Ack{StatusCode: code, ContentType: contentTypeJSON, Body: body}
}
