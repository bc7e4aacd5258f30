package sign

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
)

// GateSigner implements the Gate APIv4 scheme:
//
//	SIGN = hex(HMAC-SHA512(secret, METHOD\nPATH\nQUERY\nhex(SHA512(body))\nTS))
//
// with TS in seconds. The body is frozen to the exact JSON string signed.
type GateSigner struct {
	Clock Clock
}

func (s GateSigner) Sign(req *rest.Request) (*rest.Request, error) {
	cred, err := Credentials(req)
	if err != nil {
		return nil, err
	}
	out := req.Clone()
	out.Encoding = rest.EncodingJSON

	body := ""
	if out.Body != nil {
		if body, err = out.EncodeBody(); err != nil {
			return nil, fmt.Errorf("gate sign: %w", err)
		}
		out.Body = body
	}

	ts := strconv.FormatInt(orNow(s.Clock)().Unix(), 10)
	payload := strings.Join([]string{
		strings.ToUpper(out.Method),
		out.Path(),
		out.Params.Encode(),
		SHA512Hex(body),
		ts,
	}, "\n")

	out.SetHeader("KEY", cred.Key)
	out.SetHeader("Timestamp", ts)
	out.SetHeader("SIGN", HMACSHA512Hex(cred.Secret, payload))
	out.SetHeader("Content-Type", "application/json")
	out.SetHeader("Accept", "application/json")
	return out, nil
}
