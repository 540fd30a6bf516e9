package paybox

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXMLFields(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      map[string]string
		expectErr bool
	}{
		{
			name: "init_payment_ok",
			body: `<?xml version="1.0" encoding="utf-8"?>
<response>
	<pg_status>ok</pg_status>
	<pg_payment_id>4567788</pg_payment_id>
	<pg_redirect_url>https://pay.example.com/pay.html?customer=abc&amp;x=1</pg_redirect_url>
	<pg_salt>xyz</pg_salt>
	<pg_sig/>
</response>`,
			want: map[string]string{
				"pg_status":       "ok",
				"pg_payment_id":   "4567788",
				"pg_redirect_url": "https://pay.example.com/pay.html?customer=abc&x=1",
				"pg_salt":         "xyz",
				"pg_sig":          "",
			},
		},
		{
			name: "nested_first_wins",
			body: `<response><pg_status>error</pg_status><extra><pg_status>ok</pg_status></extra><pg_error_description>bad card</pg_error_description></response>`,
			want: map[string]string{
				"pg_status":            "error",
				"pg_error_description": "bad card",
			},
		},
		{name: "not_xml", body: `{"status":"ok"}`, expectErr: true},
		{name: "truncated", body: `<response><pg_status>ok</pg_status>`, expectErr: true},
		{name: "empty", body: ``, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ParseXMLFields([]byte(tt.body))
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestMarshalAck(t *testing.T) {
	body := marshalAck(ackDocument{Status: "ok", Description: "payment accepted", Salt: "s", Sig: "abc"})

	var doc ackDocument
	require.NoError(t, xml.Unmarshal(body, &doc))
	assert.Equal(t, "ok", doc.Status)
	assert.Equal(t, "payment accepted", doc.Description)
	assert.Equal(t, "abc", doc.Sig)
	assert.Contains(t, string(body), "<?xml")
}
