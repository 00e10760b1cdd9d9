package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Codec encodes payloads and decodes response bodies.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// DefaultCodec applies the SDK JSON convention.
var DefaultCodec Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json; charset=utf-8" }

// Marshal encodes v with encoding/json and rewrites the result: member names are
// camelCased and members whose value is null are dropped. Nulls inside arrays stay.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var buf bytes.Buffer
	buf.Grow(len(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if err := rewrite(dec, &buf, tok); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. Member names match case-insensitively, comments
// are ignored and an empty body leaves v untouched.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	clean, err := stripComments(data)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil
	}
	return json.Unmarshal(clean, v)
}

func rewrite(dec *json.Decoder, w *bytes.Buffer, tok json.Token) error {
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			return rewriteObject(dec, w)
		}
		return rewriteArray(dec, w)
	case string:
		return writeString(w, t)
	case json.Number:
		w.WriteString(t.String())
	case bool:
		w.WriteString(strconv.FormatBool(t))
	case nil:
		w.WriteString("null")
	default:
		return fmt.Errorf("unexpected JSON token %T", tok)
	}
	return nil
}

func rewriteObject(dec *json.Decoder, w *bytes.Buffer) error {
	w.WriteByte('{')
	first := true
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected JSON object key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		if valTok == nil {
			continue
		}
		if !first {
			w.WriteByte(',')
		}
		first = false
		if err := writeString(w, CamelCase(key)); err != nil {
			return err
		}
		w.WriteByte(':')
		if err := rewrite(dec, w, valTok); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	w.WriteByte('}')
	return nil
}

func rewriteArray(dec *json.Decoder, w *bytes.Buffer) error {
	w.WriteByte('[')
	first := true
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if !first {
			w.WriteByte(',')
		}
		first = false
		if err := rewrite(dec, w, tok); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	w.WriteByte(']')
	return nil
}

func writeString(w *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	w.Write(b)
	return nil
}

// CamelCase lowercases the leading run of upper-case letters, keeping the last one
// when it starts the next word: "Name" -> "name", "ID" -> "id",
// "URLPath" -> "urlPath". Names that already start lower-case are unchanged.
func CamelCase(name string) string {
	if name == "" {
		return name
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return name
	}

	runes := []rune(name)
	for i := range runes {
		if i == 1 && !unicode.IsUpper(runes[i]) {
			break
		}
		hasNext := i+1 < len(runes)
		if i > 0 && hasNext && !unicode.IsUpper(runes[i+1]) {
			if runes[i+1] == ' ' {
				runes[i] = unicode.ToLower(runes[i])
			}
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

var errUnterminatedComment = errors.New("unterminated block comment")

// stripComments blanks out // and /* */ comments that are not inside strings.
func stripComments(data []byte) ([]byte, error) {
	if bytes.IndexByte(data, '/') < 0 {
		return data, nil
	}
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == '/' && i+1 < len(data) {
			switch data[i+1] {
			case '/':
				for i < len(data) && data[i] != '\n' {
					i++
				}
				out = append(out, '\n')
				continue
			case '*':
				end := bytes.Index(data[i+2:], []byte("*/"))
				if end < 0 {
					return nil, errUnterminatedComment
				}
				i += 2 + end + 1
				out = append(out, ' ')
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// decodeBody decodes body into a new T, reporting failures as *DeserializationError.
func decodeBody[T any](codec Codec, body []byte) (T, error) {
	var out T
	if err := codec.Unmarshal(body, &out); err != nil {
		var zero T
		return zero, newDeserializationError(fmt.Sprintf("%T", out), body, err)
	}
	return out, nil
}

// readAll drains r, used for upload content.
func readAll(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(r)
}
