package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Encoding selects how a POST body goes on the wire.
type Encoding int

const (
	// EncodingForm sends k=v&k=v with application/x-www-form-urlencoded.
	EncodingForm Encoding = iota
	// EncodingJSON sends the body as application/json.
	EncodingJSON
)

func (e Encoding) String() string {
	if e == EncodingJSON {
		return "json"
	}
	return "form"
}

// Param is one key/value pair.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Order is kept on the wire so that the
// signed string and the sent string are the same bytes.
type Params []Param

// Add appends k=v, even if k already exists.
func (p *Params) Add(k, v string) {
	*p = append(*p, Param{Key: k, Value: v})
}

// Set replaces the first k or appends it.
func (p *Params) Set(k, v string) {
	for i := range *p {
		if (*p)[i].Key == k {
			(*p)[i].Value = v
			return
		}
	}
	p.Add(k, v)
}

// Get returns the first value of k.
func (p Params) Get(k string) (string, bool) {
	for _, kv := range p {
		if kv.Key == k {
			return kv.Value, true
		}
	}
	return "", false
}

// Del removes every k.
func (p *Params) Del(k string) {
	out := (*p)[:0]
	for _, kv := range *p {
		if kv.Key != k {
			out = append(out, kv)
		}
	}
	*p = out
}

// Encode joins the params query-escaped, in insertion order.
func (p Params) Encode() string {
	return p.join(url.QueryEscape)
}

// Raw joins the params without escaping.
func (p Params) Raw() string {
	return p.join(func(s string) string { return s })
}

func (p Params) join(esc func(string) string) string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(esc(kv.Key))
		b.WriteByte('=')
		b.WriteString(esc(kv.Value))
	}
	return b.String()
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// Mapper turns a decoded 200 body into a canonical value. raw is the
// undecoded response, body the json.Number preserving decode of it.
type Mapper func(raw []byte, body any) (any, error)

// Request describes one REST call. Once handed to the pipeline it is not
// mutated again; signers work on a Clone.
type Request struct {
	Gateway  string // 日志用
	Method   string // GET, POST, DELETE, PUT
	URL      string
	Params   Params
	Body     any // Params, string, []byte, or any JSON-marshalable value
	Encoding Encoding
	Header   map[string]string

	NeedsSign   bool
	SignVariant string

	Timeout time.Duration
	Proxy   string
	// Extra is opaque caller context, echoed on the Outcome.
	Extra  map[string]any
	Mapper Mapper
}

// NewRequest returns a GET/POST/... request with an empty header map.
func NewRequest(method, rawURL string) *Request {
	return &Request{Method: strings.ToUpper(method), URL: rawURL, Header: map[string]string{}}
}

// Clone copies the request deeply enough that Params, Header and a Params
// body may be changed without touching the original.
func (r *Request) Clone() *Request {
	c := *r
	c.Params = r.Params.Clone()
	if body, ok := r.Body.(Params); ok {
		c.Body = body.Clone()
	}
	c.Header = make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		c.Header[k] = v
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// SetHeader sets a header, allocating the map when needed.
func (r *Request) SetHeader(k, v string) {
	if r.Header == nil {
		r.Header = map[string]string{}
	}
	r.Header[k] = v
}

// FullURL is URL with the ordered query string appended.
func (r *Request) FullURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + r.Params.Encode()
}

// Path returns the URL path, used by signers that sign it.
func (r *Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Path
}

// EncodeBody renders Body the way it is sent.
func (r *Request) EncodeBody() (string, error) {
	switch b := r.Body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case Params:
		if r.Encoding == EncodingJSON {
			m := make(map[string]string, len(b))
			for _, kv := range b {
				m[kv.Key] = kv.Value
			}
			out, err := json.Marshal(m)
			return string(out), err
		}
		return b.Encode(), nil
	default:
		if r.Encoding == EncodingForm {
			return "", fmt.Errorf("body type %T cannot be form encoded", r.Body)
		}
		out, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("marshal body: %w", err)
		}
		return string(out), nil
	}
}

func (r *Request) contentType() string {
	if r.Encoding == EncodingJSON {
		return "application/json"
	}
	return "application/x-www-form-urlencoded"
}

func (r *Request) hasBody() bool {
	return r.Body != nil && r.Method != http.MethodGet
}
