package mail_test

import (
	"strings"
	"testing"

	"rfpmanager/internal/mail"

	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseMessageMultipart(t *testing.T) {
	raw := crlf(`From: "Acme Sales" <sales@acme.test>
To: rfp@buyer.test
Subject: Re: New RFP: Laptops [RFP:5f1d9c3b2a1e4f6789abc123]
Date: Mon, 02 Jan 2006 15:04:05 +0000
Message-ID: <abc@acme.test>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

We can deliver 20 laptops for $40,000.
--inner
Content-Type: text/html; charset=utf-8

<p>We can deliver <b>20 laptops</b> for $40,000.</p>
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="quote.pdf"

%PDF-1.4 fake
--outer--
`)

	email, err := mail.ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "sales@acme.test", email.From)
	require.Equal(t, "rfp@buyer.test", email.To)
	require.Equal(t, "Re: New RFP: Laptops [RFP:5f1d9c3b2a1e4f6789abc123]", email.Subject)
	require.Equal(t, "abc@acme.test", email.MessageID)
	require.Equal(t, 2006, email.Date.Year())
	require.Equal(t, "We can deliver 20 laptops for $40,000.", strings.TrimSpace(email.Text))
	require.Contains(t, email.HTML, "<b>20 laptops</b>")

	require.Len(t, email.Attachments, 1)
	require.Equal(t, "quote.pdf", email.Attachments[0].Filename)
	require.Equal(t, "application/pdf", email.Attachments[0].MimeType)
	require.Positive(t, email.Attachments[0].Size)

	id, ok := mail.ExtractRFPID(email.Subject)
	require.True(t, ok)
	require.Equal(t, "5f1d9c3b2a1e4f6789abc123", id)
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := crlf(`From: vendor@x.com
Subject: Proposal
Content-Type: text/html; charset=utf-8

<html><head><style>p{}</style></head><body><p>Price: $10</p><p>Delivery: 2 weeks</p></body></html>
`)

	email, err := mail.ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "vendor@x.com", email.From)
	require.Equal(t, "Price: $10\nDelivery: 2 weeks", email.Text)
	require.Empty(t, email.Attachments)
}

func TestParseMessagePlainWithoutContentType(t *testing.T) {
	raw := crlf(`From: vendor@x.com
Subject: RFP 5f1d9c3b2a1e4f6789abc123

Plain body
`)

	email, err := mail.ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "Plain body", strings.TrimSpace(email.Text))
}

func TestHTMLToText(t *testing.T) {
	in := `<div><h1>Offer</h1><script>alert(1)</script><ul><li>One</li><li>Two</li></ul></div>`
	require.Equal(t, "Offer\n- One\n- Two", mail.HTMLToText(in))
}
