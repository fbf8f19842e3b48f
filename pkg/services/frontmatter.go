package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"jekyll-cms/pkg/models"

	"github.com/adrg/frontmatter"
	json "github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// block is a front matter section split off a file, before decoding.
type block struct {
	Format   string
	Open     string
	Close    string
	Data     []byte
	Body     []byte
	DataLine int // line of the first byte of Data
	BodyLine int // line of the first byte of Body
}

var fences = map[string]string{
	"---": "yaml",
	"+++": "toml",
}

func trimBOM(content []byte) []byte {
	return bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
}

func splitFrontMatter(content []byte) (*block, error) {
	content = trimBOM(content)
	first, rest, _ := cutLine(content)
	fence := string(bytes.TrimRight(first, " \t\r"))

	if format, ok := fences[fence]; ok {
		dataStart := len(content) - len(rest)
		offset := dataStart
		line := 2
		remaining := rest
		for {
			current, next, found := cutLine(remaining)
			trimmed := string(bytes.TrimRight(current, " \t\r"))
			if trimmed == fence || (format == "yaml" && trimmed == "...") {
				return &block{
					Format:   format,
					Open:     fence,
					Close:    trimmed,
					Data:     content[dataStart:offset],
					Body:     next,
					DataLine: 2,
					BodyLine: line + 1,
				}, nil
			}
			if !found {
				break
			}
			offset += len(current) + 1
			remaining = next
			line++
		}
		return nil, fmt.Errorf("unterminated %s front matter", format)
	}

	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		end := jsonObjectEnd(trimmed)
		if end < 0 {
			return nil, fmt.Errorf("unterminated json front matter")
		}
		lead := len(content) - len(trimmed)
		data := trimmed[:end]
		return &block{
			Format:   "json",
			Data:     data,
			Body:     trimmed[end:],
			DataLine: 1 + bytes.Count(content[:lead], []byte("\n")),
			BodyLine: 1 + bytes.Count(content[:lead+end], []byte("\n")),
		}, nil
	}
	return nil, ErrNoFrontMatter
}

func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, false
}

// jsonObjectEnd returns the offset just past the object that opens b, or -1.
func jsonObjectEnd(b []byte) int {
	depth := 0
	inString, escaped := false, false
	for i, c := range b {
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// HasFrontMatter reports whether content opens with a recognised front matter block.
func HasFrontMatter(content []byte) bool {
	_, err := splitFrontMatter(content)
	return err == nil
}

// ParseFrontMatter splits content into its decoded front matter, trimmed body and format
// (yaml, toml or json).
func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, error) {
	b, err := splitFrontMatter(content)
	if err != nil {
		return nil, "", "", err
	}

	fm := map[string]interface{}{}
	switch b.Format {
	case "yaml":
		err = unmarshalYAML(b.Data, &fm)
	case "toml":
		err = toml.Unmarshal(b.Data, &fm)
	case "json":
		err = json.Unmarshal(b.Data, &fm)
	}
	if err != nil {
		return nil, "", b.Format, fmt.Errorf("decode %s front matter: %w", b.Format, err)
	}
	if fm == nil {
		fm = map[string]interface{}{}
	}
	return sanitizeFrontMatter(fm), strings.TrimSpace(normalizeLineEndings(string(b.Body))), b.Format, nil
}

// DecodeFrontMatter decodes the typed metadata of a post along with its raw map and body.
// Dates without a zone are read in loc.
func DecodeFrontMatter(content []byte, loc *time.Location) (models.FrontMatter, map[string]interface{}, []byte, error) {
	b, err := splitFrontMatter(content)
	if err != nil {
		return models.FrontMatter{}, nil, content, err
	}

	var raw map[string]interface{}
	body := b.Body
	switch b.Format {
	case "json":
		err = json.Unmarshal(b.Data, &raw)
	case "toml":
		body, err = frontmatter.Parse(bytes.NewReader(trimBOM(content)), &raw,
			frontmatter.NewFormat(b.Open, b.Close, toml.Unmarshal))
	default:
		body, err = frontmatter.Parse(bytes.NewReader(trimBOM(content)), &raw,
			frontmatter.NewFormat(b.Open, b.Close, unmarshalYAML))
	}
	if err != nil {
		return models.FrontMatter{}, nil, nil, fmt.Errorf("parse %s front matter: %w", b.Format, err)
	}
	raw = sanitizeFrontMatter(raw)
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return FrontMatterFromMap(raw, loc), raw, body, nil
}

// unmarshalYAML decodes like yaml.Unmarshal except that timestamps without a zone
// stay strings, so that ParseDate reads them in the site timezone.
func unmarshalYAML(data []byte, v interface{}) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 {
		return nil
	}
	keepLocalTimestamps(&doc)
	return doc.Decode(v)
}

// yaml.v3 only accepts a zone on timestamps written with a T separator.
func isLocalTimestampNode(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Style&yaml.TaggedStyle == 0 &&
		n.ShortTag() == "!!timestamp" && !strings.ContainsAny(n.Value, "Tt")
}

func keepLocalTimestamps(n *yaml.Node) {
	if isLocalTimestampNode(n) {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		keepLocalTimestamps(c)
	}
}

// plainLocalTimestamps undoes keepLocalTimestamps on an encoded tree so that dates are
// written back unquoted.
func plainLocalTimestamps(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" && isLocalTimestamp(n.Value) {
			n.Tag = "!!timestamp"
			n.Style = 0
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			plainLocalTimestamps(n.Content[i])
		}
	default:
		for _, c := range n.Content {
			plainLocalTimestamps(c)
		}
	}
}

func isLocalTimestamp(s string) bool {
	for _, layout := range []string{"2006-1-2", "2006-1-2 15:4:5"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

var knownKeys = map[string]bool{
	"layout": true, "title": true, "author": true, "description": true, "modified": true,
	"date": true, "published": true, "tags": true, "categories": true, "category": true,
	"permalink": true,
}

// FrontMatterFromMap coerces a decoded map into models.FrontMatter. Values of the wrong
// type are dropped; the linter reports them.
func FrontMatterFromMap(raw map[string]interface{}, loc *time.Location) models.FrontMatter {
	var fm models.FrontMatter
	fm.Layout, _ = raw["layout"].(string)
	fm.Title, _ = raw["title"].(string)
	fm.Author, _ = raw["author"].(string)
	fm.Description, _ = raw["description"].(string)
	fm.Permalink, _ = raw["permalink"].(string)
	if t, ok := ParseDate(raw["modified"], loc); ok {
		fm.Modified = t
	}
	if t, ok := ParseDate(raw["date"], loc); ok {
		fm.Date = t
	}
	if p, ok := raw["published"].(bool); ok {
		fm.Published = &p
	}
	fm.Tags, _ = StringList(raw["tags"])
	fm.Categories, _ = StringList(raw["categories"])
	if len(fm.Categories) == 0 {
		fm.Categories, _ = StringList(raw["category"])
	}

	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if fm.Extra == nil {
			fm.Extra = map[string]any{}
		}
		fm.Extra[k] = v
	}
	return fm
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseDate accepts a decoded time or one of the date spellings used in front matter.
func ParseDate(v interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case toml.LocalDate:
		return d.AsTime(loc), true
	case toml.LocalDateTime:
		return d.AsTime(loc), true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// StringList accepts a list of strings or a whitespace separated string.
func StringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case nil:
		return nil, true
	case string:
		return strings.Fields(list), true
	case []string:
		return append([]string(nil), list...), true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func ConstructFileContent(fm map[string]interface{}, body string, format string) ([]byte, error) {
	normalizedFM := sanitizeFrontMatter(fm)
	if normalizedFM == nil {
		normalizedFM = map[string]interface{}{}
	}

	var buf bytes.Buffer
	switch format {
	case "yaml", "":
		var doc yaml.Node
		if err := doc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		plainLocalTimestamps(&doc)
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
	case "toml":
		buf.WriteString("+++\n")
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		buf.WriteString("+++\n")
	case "json":
		out, err := json.MarshalIndent(canonicalizeFrontMatterForJSON(normalizedFM), "", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(out)
		buf.WriteString("\n")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// NormalizeContent re-encodes content in its own format with defaults filled in.
// Content that cannot be parsed is only trimmed.
func NormalizeContent(content []byte, defaults map[string]interface{}) []byte {
	if len(content) == 0 {
		return content
	}
	fm, body, format, err := ParseFrontMatter(content)
	if err != nil {
		return append(bytes.TrimSpace(content), '\n')
	}

	applyDefaultsInPlace(fm, defaults)

	normalized, err := ConstructFileContent(fm, body, format)
	if err != nil {
		return append(bytes.TrimSpace(content), '\n')
	}
	return append(bytes.TrimSpace(normalized), '\n')
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

func applyDefaultsInPlace(fm map[string]interface{}, defaults map[string]interface{}) {
	if fm == nil {
		return
	}
	for k, v := range defaults {
		if _, exists := fm[k]; !exists && v != nil {
			fm[k] = sanitizeFrontMatterValue(v)
		}
	}
}

func normalizeListFields(fm map[string]interface{}, keys ...string) {
	for _, key := range keys {
		val, exists := fm[key]
		if !exists || val == nil {
			fm[key] = []interface{}{}
			continue
		}
		switch list := val.(type) {
		case []interface{}:
		case string:
			items := strings.Fields(list)
			normalized := make([]interface{}, len(items))
			for i := range items {
				normalized[i] = items[i]
			}
			fm[key] = normalized
		default:
			fm[key] = []interface{}{list}
		}
	}
}

func canonicalizeFrontMatterForJSON(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	canonical := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		canonical[k] = canonicalizeValueForJSON(v)
	}
	return canonical
}

func canonicalizeValueForJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return canonicalizeFrontMatterForJSON(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = canonicalizeValueForJSON(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = canonicalizeValueForJSON(v[i])
		}
		return slice
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case toml.LocalDate, toml.LocalDateTime, toml.LocalTime:
		return fmt.Sprint(v)
	default:
		return v
	}
}

func normalizeLineEndings(input string) string {
	return strings.ReplaceAll(input, "\r\n", "\n")
}

// pruneEmptyFields drops empty strings and empty lists so that "tags: []" and a
// missing tags key compare equal. false and 0 are kept.
func pruneEmptyFields(val interface{}) interface{} {
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{})
		for k, elem := range v {
			if pruned := pruneEmptyFields(elem); pruned != nil {
				out[k] = pruned
			}
		}
		return out
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		return v
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if v == "" {
			return nil
		}
		return v
	default:
		return v
	}
}

// CanonicalizeForDiff returns a stable JSON rendering of the front matter and the
// normalized body, so that formatting-only edits compare equal.
func CanonicalizeForDiff(content []byte, defaults map[string]interface{}) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, "", nil
	}

	fm, body, _, err := ParseFrontMatter(trimmed)
	if err != nil {
		return nil, strings.TrimSpace(normalizeLineEndings(string(trimmed))), err
	}

	applyDefaultsInPlace(fm, defaults)
	normalizeListFields(fm, "tags", "categories")

	fmMap, ok := pruneEmptyFields(fm).(map[string]interface{})
	if !ok {
		fmMap = map[string]interface{}{}
	}

	canonicalFM, err := json.Marshal(canonicalizeFrontMatterForJSON(fmMap))
	if err != nil {
		return nil, "", err
	}
	return canonicalFM, strings.TrimSpace(normalizeLineEndings(body)), nil
}
