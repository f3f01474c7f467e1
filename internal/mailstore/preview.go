package mailstore

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
)

// ExtractPreview derives a plain-text body preview from a raw RFC 5322
// message, preferring a text/plain part and falling back to converted HTML.
// The result is whitespace-collapsed and truncated to limit runes.
func ExtractPreview(raw []byte, limit int) string {
	plain, html := extractBodies(raw)

	text := plain
	if text == "" && html != "" {
		text = html2text.HTML2Text(html)
	}
	if text == "" {
		// Not parseable as MIME; take whatever follows the header block.
		if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx != -1 {
			text = string(raw[idx+4:])
		}
	}

	return truncateRunes(collapseWhitespace(text), limit)
}

func extractBodies(raw []byte) (plain, html string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", ""
	}
	defer func() { _ = mr.Close() }()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		switch contentType {
		case "text/plain":
			if plain == "" {
				body, err := io.ReadAll(part.Body)
				if err == nil {
					plain = string(body)
				}
			}
		case "text/html":
			if html == "" {
				body, err := io.ReadAll(part.Body)
				if err == nil {
					html = string(body)
				}
			}
		}

		if plain != "" {
			break
		}
	}
	return plain, html
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
