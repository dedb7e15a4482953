package storedquery

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const (
	placeholderOpen  = "${"
	placeholderClose = "}"
	optionalOpen     = "[["
	optionalClose    = "]]"
	listSeparator    = "', '"
)

// part is one piece of a parsed template: literal text, a placeholder, or
// an optional block made of literals and placeholders. quoted is set on
// placeholders that sit inside a single-quoted literal.
type part struct {
	text        string
	placeholder string
	quoted      bool
	optional    []part
}

// parseTemplate splits a template into parts. Optional blocks do not nest.
func parseTemplate(tmpl string) ([]part, error) {
	var (
		parts   []part
		block   []part
		inBlock bool
		inQuote bool
		lit     strings.Builder
	)
	current := &parts
	flush := func() {
		if lit.Len() > 0 {
			*current = append(*current, part{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], optionalOpen):
			if inBlock {
				return nil, fmt.Errorf("%w: nested %s at offset %d", ErrTemplate, optionalOpen, i)
			}
			flush()
			inBlock, block, current = true, nil, &block
			i += len(optionalOpen)
		case strings.HasPrefix(tmpl[i:], optionalClose) && inBlock:
			flush()
			parts = append(parts, part{optional: block})
			inBlock, current = false, &parts
			i += len(optionalClose)
		case strings.HasPrefix(tmpl[i:], placeholderOpen):
			end := strings.Index(tmpl[i:], placeholderClose)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated placeholder at offset %d", ErrTemplate, i)
			}
			name := strings.TrimSpace(tmpl[i+len(placeholderOpen) : i+end])
			if name == "" {
				return nil, fmt.Errorf("%w: empty placeholder at offset %d", ErrTemplate, i)
			}
			flush()
			*current = append(*current, part{placeholder: name, quoted: inQuote})
			i += end + len(placeholderClose)
		case tmpl[i] == '\\' && i+1 < len(tmpl):
			lit.WriteString(tmpl[i : i+2])
			i += 2
		default:
			if tmpl[i] == '\'' {
				inQuote = !inQuote
			}
			lit.WriteByte(tmpl[i])
			i++
		}
	}
	if inBlock {
		return nil, fmt.Errorf("%w: unterminated %s", ErrTemplate, optionalOpen)
	}
	flush()
	return parts, nil
}

// Bind renders q's template with params. Every required property must be
// present. An optional block is dropped unless all of its placeholders are
// bound; an unbound optional placeholder outside a block renders empty.
// A placeholder outside single quotes only accepts a number or a boolean,
// since escaping cannot protect it.
func Bind(q StoredQuery, params map[string]any) (string, error) {
	for _, name := range q.Required.Names {
		if !bound(params, name) {
			return "", &MissingParameterError{Query: q.Name, Name: name}
		}
	}

	parts, err := parseTemplate(q.Template)
	if err != nil {
		return "", fmt.Errorf("stored query %s: %w", q.Name, err)
	}

	var out strings.Builder
	for _, p := range parts {
		switch {
		case p.optional != nil:
			if blockBound(p.optional, params) {
				for _, inner := range p.optional {
					out.WriteString(inner.text)
					if inner.placeholder == "" {
						continue
					}
					v, err := renderPart(q.Name, inner, params[inner.placeholder])
					if err != nil {
						return "", err
					}
					out.WriteString(v)
				}
			}
		case p.placeholder != "":
			if bound(params, p.placeholder) {
				v, err := renderPart(q.Name, p, params[p.placeholder])
				if err != nil {
					return "", err
				}
				out.WriteString(v)
			} else if !q.Optional.Contains(p.placeholder) {
				return "", &MissingParameterError{Query: q.Name, Name: p.placeholder}
			}
		default:
			out.WriteString(p.text)
		}
	}
	return out.String(), nil
}

// renderPart renders v for placeholder p, refusing anything but a bare
// scalar when p is not enclosed in quotes
func renderPart(query string, p part, v any) (string, error) {
	s := Render(v)
	if p.quoted || isBareScalar(s) {
		return s, nil
	}
	return "", fmt.Errorf("stored query %s: %w: %s must be a number or boolean, got %q",
		query, ErrInvalidParameter, p.placeholder, s)
}

func isBareScalar(s string) bool {
	if s == "true" || s == "false" {
		return true
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && !strings.ContainsAny(s, "xXpPnN_")
}

func bound(params map[string]any, name string) bool {
	v, ok := params[name]
	return ok && v != nil
}

func blockBound(block []part, params map[string]any) bool {
	for _, p := range block {
		if p.placeholder != "" && !bound(params, p.placeholder) {
			return false
		}
	}
	return true
}

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Render formats one parameter value for substitution. List elements are
// joined with ', ' between elements only, so [a b c] renders as
// a', 'b', 'c and the enclosing template supplies the outer quotes.
func Render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return escaper.Replace(x)
	case []string:
		elems := make([]string, len(x))
		for i, s := range x {
			elems[i] = escaper.Replace(s)
		}
		return strings.Join(elems, listSeparator)
	case []byte:
		return escaper.Replace(string(x))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = escaper.Replace(fmt.Sprint(rv.Index(i).Interface()))
		}
		return strings.Join(elems, listSeparator)
	}
	return escaper.Replace(fmt.Sprint(v))
}
