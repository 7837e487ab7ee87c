// Package transform converts raw platform GraphQL documents into
// upload bodies for the target service. Input documents are dynamic
// JSON with many optional branches, so traversal goes through a small
// tolerant node wrapper instead of rigid structs.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Itoktsnhc/stat.itok/internal/battleid"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// node wraps one decoded JSON value. The zero node is absent; every
// accessor on an absent or mistyped node returns the zero value, which
// mirrors how the source documents omit whole branches per mode.
type node struct {
	v  interface{}
	ok bool
}

func parseJSON(raw string) (node, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return node{}, fmt.Errorf("failed to parse document: %w", err)
	}
	return node{v: v, ok: true}, nil
}

func (n node) get(keys ...string) node {
	cur := n
	for _, key := range keys {
		if !cur.ok {
			return node{}
		}
		m, isMap := cur.v.(map[string]interface{})
		if !isMap {
			return node{}
		}
		v, found := m[key]
		if !found || v == nil {
			return node{}
		}
		cur = node{v: v, ok: true}
	}
	return cur
}

func (n node) index(i int) node {
	arr, isArr := n.v.([]interface{})
	if !n.ok || !isArr || i < 0 || i >= len(arr) || arr[i] == nil {
		return node{}
	}
	return node{v: arr[i], ok: true}
}

func (n node) arr() []node {
	arr, isArr := n.v.([]interface{})
	if !n.ok || !isArr {
		return nil
	}
	out := make([]node, 0, len(arr))
	for _, v := range arr {
		out = append(out, node{v: v, ok: v != nil})
	}
	return out
}

func (n node) exists() bool { return n.ok }

func (n node) str() string {
	s, _ := n.v.(string)
	return s
}

// numStr stringifies a value that appears as either a JSON string or
// a JSON number depending on the document version.
func (n node) numStr() string {
	switch v := n.v.(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

func (n node) boolPtr() *bool {
	b, isBool := n.v.(bool)
	if !n.ok || !isBool {
		return nil
	}
	return &b
}

func (n node) intPtr() *int {
	f, isNum := n.v.(float64)
	if !n.ok || !isNum {
		return nil
	}
	i := int(f)
	return &i
}

func (n node) intOr(fallback int) int {
	if p := n.intPtr(); p != nil {
		return *p
	}
	return fallback
}

func (n node) floatPtr() *float64 {
	f, isNum := n.v.(float64)
	if !n.ok || !isNum {
		return nil
	}
	return &f
}

// raw re-encodes the node; used to carry group sub-documents forward
// as opaque strings.
func (n node) raw() string {
	if !n.ok {
		return ""
	}
	out, err := json.Marshal(n.v)
	if err != nil {
		return ""
	}
	return string(out)
}

// firstKey returns any one key of an object; the listing responses
// have exactly one property under "data" whose name depends on the
// query.
func (n node) firstKey() string {
	m, isMap := n.v.(map[string]interface{})
	if !n.ok || !isMap {
		return ""
	}
	for k := range m {
		return k
	}
	return ""
}

// ExtractListings flattens a listing response into match groups and
// their raw identifiers. A malformed response yields an empty slice,
// never an error: a listing with nothing recognizable simply has
// nothing to harvest.
func ExtractListings(rawJSON string) []models.MatchGroupListing {
	root, err := parseJSON(rawJSON)
	if err != nil {
		return nil
	}

	data := root.get("data")
	queryName := data.firstKey()
	if queryName == "" {
		return nil
	}

	var out []models.MatchGroupListing
	for _, group := range data.get(queryName, "historyGroups", "nodes").arr() {
		listing := models.MatchGroupListing{RawGroup: group.raw()}
		for _, detail := range group.get("historyDetails", "nodes").arr() {
			if id := detail.get("id").str(); id != "" {
				listing.MatchIDs = append(listing.MatchIDs, id)
			}
		}
		out = append(out, listing)
	}
	return out
}

// dictKey builds the localized-name lookup key used by the target
// service's key dictionaries.
func dictKey(userLang string, name string) string {
	return fmt.Sprintf("[%s]%s", strings.ReplaceAll(userLang, "-", "_"), name)
}

// colorHex renders a float RGBA color object as an 8-digit hex string.
func colorHex(color node) string {
	if !color.exists() {
		return ""
	}
	var sb strings.Builder
	for _, key := range []string{"r", "g", "b", "a"} {
		f := color.get(key).floatPtr()
		if f == nil {
			return ""
		}
		fmt.Fprintf(&sb, "%02x", int(*f*255))
	}
	return sb.String()
}

// decodeNumericID base64-decodes an opaque id like "VsStage-16" and
// parses its trailing number.
func decodeNumericID(rawID string) (int, error) {
	decoded, err := battleid.ParseCommonID(rawID)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(decoded)
}

// commonID decodes an opaque sub-identifier, returning "" when absent
// or undecodable.
func commonID(n node) string {
	raw := n.str()
	if raw == "" {
		return ""
	}
	id, err := battleid.ParseCommonID(raw)
	if err != nil {
		return ""
	}
	return id
}
