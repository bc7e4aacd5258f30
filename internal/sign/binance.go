package sign

import (
	"net/http"
	"strconv"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
)

// BinanceSigner implements the Binance SIGNED endpoint scheme.
//
// The canonical string is the query (GET/DELETE) or the form body (POST) in
// insertion order, with timestamp and recvWindow appended when absent. The
// hex HMAC-SHA256 goes into a trailing signature field of the same list.
type BinanceSigner struct {
	RecvWindow int64 // ms, 0 means 5000
	Clock      Clock
}

func (s BinanceSigner) Sign(req *rest.Request) (*rest.Request, error) {
	cred, err := Credentials(req)
	if err != nil {
		return nil, err
	}
	out := req.Clone()

	fields := out.Params
	if out.Method == http.MethodPost || out.Method == http.MethodPut {
		fields, _ = out.Body.(rest.Params)
		fields = fields.Clone()
	}

	recv := s.RecvWindow
	if recv <= 0 {
		recv = 5000
	}
	fields.Del("signature")
	if _, ok := fields.Get("timestamp"); !ok {
		fields.Add("timestamp", strconv.FormatInt(orNow(s.Clock)().UnixMilli(), 10))
	}
	if _, ok := fields.Get("recvWindow"); !ok {
		fields.Add("recvWindow", strconv.FormatInt(recv, 10))
	}
	fields.Add("signature", HMACSHA256Hex(cred.Secret, fields.Encode()))

	if out.Method == http.MethodPost || out.Method == http.MethodPut {
		out.Body = fields
		out.Encoding = rest.EncodingForm
	} else {
		out.Params = fields
	}
	out.SetHeader("X-MBX-APIKEY", cred.Key)
	out.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	out.SetHeader("Accept", "application/json")
	return out, nil
}
