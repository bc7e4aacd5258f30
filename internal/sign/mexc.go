package sign

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
)

var (
	mexcEscape   = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")
	mexcUnescape = strings.NewReplacer("%28", "(", "%29", ")", "%20", " ")
)

// MexcSigner implements the MEXC spot v3 scheme.
//
// Params (GET) or body fields (POST) are joined k=v in order, POST values
// with "(", ")" and " " percent-escaped, then recvWindow=5000&timestamp=<ms>
// is appended and signed with HMAC-SHA256. The signed string, with the
// escapes reverted, becomes the POST body; for GET and DELETE it is appended
// to the URL instead. Params are cleared either way.
type MexcSigner struct {
	Clock Clock
}

func (s MexcSigner) Sign(req *rest.Request) (*rest.Request, error) {
	cred, err := Credentials(req)
	if err != nil {
		return nil, err
	}
	out := req.Clone()

	var b strings.Builder
	var fields rest.Params
	escape := false
	if out.Method == http.MethodPost {
		fields, _ = out.Body.(rest.Params)
		escape = true
	} else {
		fields = out.Params
	}
	for _, kv := range fields {
		v := kv.Value
		if escape {
			v = mexcEscape.Replace(v)
		}
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('&')
	}
	b.WriteString("recvWindow=5000&timestamp=")
	b.WriteString(strconv.FormatInt(orNow(s.Clock)().UnixMilli(), 10))

	payload := b.String()
	signed := mexcUnescape.Replace(payload + "&signature=" + HMACSHA256Hex(cred.Secret, payload))

	out.Body = signed
	if out.Method != http.MethodPost {
		out.Body = nil
		sep := "?"
		if strings.Contains(out.URL, "?") {
			sep = "&"
		}
		out.URL = out.URL + sep + signed
	}
	out.Params = nil
	out.SetHeader("X-MEXC-APIKEY", cred.Key)
	out.SetHeader("Content-Type", "application/json")
	return out, nil
}
