package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"instascrape/internal/entity"
)

func parseCookies(raw []byte) ([]entity.Cookie, error) {
	var cookies []entity.Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("cannot parse cookie list: %w", err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookie list is empty")
	}

	return cookies, nil
}

func hasSessionID(cookies []entity.Cookie) bool {
	for _, c := range cookies {
		if c.Name == sessionCookieName && c.Value != "" {
			return true
		}
	}

	return false
}

// toNetscape renders the structured cookie list into the line-oriented form
// yt-dlp and gallery-dl consume. Output is deterministic for a given input,
// records keep their order.
func toNetscape(cookies []entity.Cookie) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Netscape HTTP Cookie File\n")
	buf.WriteString("# This is a generated file! Do not edit.\n\n")

	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = defaultDomain
		}

		flag := "FALSE"
		if strings.HasPrefix(domain, ".") {
			flag = "TRUE"
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}

		// Expiration is written as 0: session cookies as far as the tools
		// are concerned, actual freshness is tracked by the session status.
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t0\t%s\t%s\n",
			domain, flag, path, secure, c.Name, c.Value)
	}

	return buf.Bytes()
}
