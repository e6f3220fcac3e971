package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// GENA constants
const (
	EventNT             = "upnp:event"
	EventNTS            = "upnp:propchange"
	NotifyPath          = "/notify"
	DefaultLeaseSeconds = 1800
	timeoutPrefix       = "second-"
	timeoutInfinite     = "infinite"
)

// FormatTimeout encodes a lease length for the TIMEOUT header. 0 means infinite.
func FormatTimeout(seconds uint32) string {
	if seconds == 0 {
		return "Second-infinite"
	}
	return fmt.Sprintf("Second-%d", seconds)
}

// ParseTimeout decodes a TIMEOUT header. Second-infinite yields 0.
func ParseTimeout(header string) (uint32, bool) {
	value := strings.ToLower(strings.TrimSpace(header))
	if !strings.HasPrefix(value, timeoutPrefix) {
		return 0, false
	}
	value = strings.TrimPrefix(value, timeoutPrefix)
	if value == timeoutInfinite {
		return 0, true
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// FormatCallback encodes callback URLs for the CALLBACK header.
func FormatCallback(urls []string) string {
	parts := make([]string, 0, len(urls))
	for _, u := range urls {
		parts = append(parts, "<"+u+">")
	}
	return strings.Join(parts, " ")
}

// ParseCallback decodes a CALLBACK header into its URLs.
func ParseCallback(header string) []string {
	var urls []string
	rest := header
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			return urls
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			return urls
		}
		if u := strings.TrimSpace(rest[start+1 : start+end]); u != "" {
			urls = append(urls, u)
		}
		rest = rest[start+end+1:]
	}
}

// ParsePropertySet decodes an event notification body. Each <property>
// contributes the name and text of its single child element.
func ParsePropertySet(body []byte) (map[string]string, error) {
	dec := newXMLDecoder(body)

	root, err := nextStart(dec)
	if err != nil {
		return nil, newParseError(DocPropertySet, "missing propertyset", err)
	}
	if root.Name.Local != "propertyset" {
		return nil, newParseError(DocPropertySet, fmt.Sprintf("unexpected root element <%s>", root.Name.Local), nil)
	}

	props := make(map[string]string)
	for {
		el, err := nextStart(dec)
		if errors.Is(err, errEndOfParent) {
			break
		}
		if err != nil {
			return nil, newParseError(DocPropertySet, "malformed propertyset", err)
		}
		if el.Name.Local != "property" {
			if err := dec.Skip(); err != nil {
				return nil, newParseError(DocPropertySet, "malformed propertyset", err)
			}
			continue
		}

		for {
			variable, err := nextStart(dec)
			if errors.Is(err, errEndOfParent) {
				break
			}
			if err != nil {
				return nil, newParseError(DocPropertySet, "malformed property", err)
			}
			text, err := collectText(dec)
			if err != nil {
				return nil, newParseError(DocPropertySet, "malformed variable "+variable.Name.Local, err)
			}
			props[variable.Name.Local] = text
		}
	}

	if err := drain(dec); err != nil {
		return nil, newParseError(DocPropertySet, "malformed trailing content", err)
	}
	return props, nil
}
