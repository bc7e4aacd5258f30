package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

var fixed = func() time.Time { return time.UnixMilli(1700000000123) }

func credsExtra() map[string]any {
	return map[string]any{ExtraCredentials: schema.Credentials{Key: "api-key", Secret: "secret"}}
}

func TestHMACHelpers(t *testing.T) {
	// RFC 4231 test case 2
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		HMACSHA256Hex("Jefe", "what do ya want for nothing?"))
	assert.Equal(t, "164b7a7bfcf819e2e395fbe73b56e0a387bd64222e831fd610270cd7ea2505549758bf75c05a994a6d034f65f8f0e6fdcaeab1a34d4a6b4b636e070a38bce737",
		HMACSHA512Hex("Jefe", "what do ya want for nothing?"))
	assert.Len(t, SHA512Hex(""), 128)
}

func TestCredentials(t *testing.T) {
	_, err := Credentials(&rest.Request{})
	assert.ErrorIs(t, err, ErrMissingKey)

	c, err := Credentials(&rest.Request{Extra: map[string]any{"key": "k", "secret": "s"}})
	require.NoError(t, err)
	assert.Equal(t, "k", c.Key)

	_, err = Credentials(&rest.Request{Extra: map[string]any{"key": "k"}})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestBinanceSignGet(t *testing.T) {
	req := rest.NewRequest(http.MethodGet, "https://api.binance.com/api/v3/account")
	req.Params.Add("symbol", "BTCUSDT")
	req.Extra = credsExtra()

	signed, err := BinanceSigner{Clock: fixed}.Sign(req)
	require.NoError(t, err)

	canonical := "symbol=BTCUSDT&timestamp=1700000000123&recvWindow=5000"
	sig, _ := signed.Params.Get("signature")
	assert.Equal(t, HMACSHA256Hex("secret", canonical), sig)
	assert.Equal(t, canonical+"&signature="+sig, signed.Params.Encode())
	assert.Equal(t, "api-key", signed.Header["X-MBX-APIKEY"])

	assert.Len(t, req.Params, 1, "input must not be mutated")
	_, has := req.Header["X-MBX-APIKEY"]
	assert.False(t, has)

	again, err := BinanceSigner{Clock: fixed}.Sign(signed)
	require.NoError(t, err)
	assert.Equal(t, signed.Params.Encode(), again.Params.Encode(), "signing is idempotent for a fixed clock")
}

func TestBinanceSignPostBody(t *testing.T) {
	req := rest.NewRequest(http.MethodPost, "https://api.binance.com/api/v3/order")
	req.Body = rest.Params{{Key: "symbol", Value: "BTCUSDT"}, {Key: "side", Value: "BUY"}, {Key: "timestamp", Value: "1"}}
	req.Extra = credsExtra()

	signed, err := BinanceSigner{Clock: fixed, RecvWindow: 60000}.Sign(req)
	require.NoError(t, err)

	body := signed.Body.(rest.Params)
	sig, _ := body.Get("signature")
	assert.Equal(t, HMACSHA256Hex("secret", "symbol=BTCUSDT&side=BUY&timestamp=1&recvWindow=60000"), sig)
	assert.Empty(t, signed.Params)
	assert.Len(t, req.Body.(rest.Params), 3)
}

func TestBinanceSignMissingKey(t *testing.T) {
	_, err := BinanceSigner{}.Sign(rest.NewRequest(http.MethodGet, "https://api.binance.com/api/v3/account"))
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestMexcSignGetAppendsToURL(t *testing.T) {
	req := rest.NewRequest(http.MethodGet, "https://api.mexc.com/api/v3/account")
	req.Params.Add("symbol", "BTCUSDT")
	req.Extra = credsExtra()

	signed, err := MexcSigner{Clock: fixed}.Sign(req)
	require.NoError(t, err)

	payload := "symbol=BTCUSDT&recvWindow=5000&timestamp=1700000000123"
	want := payload + "&signature=" + HMACSHA256Hex("secret", payload)
	assert.Equal(t, "https://api.mexc.com/api/v3/account?"+want, signed.URL)
	assert.Nil(t, signed.Body)
	assert.Empty(t, signed.Params)
	assert.Equal(t, "api-key", signed.Header["X-MEXC-APIKEY"])
	assert.Equal(t, "https://api.mexc.com/api/v3/account?"+want, signed.FullURL())
}

func TestMexcSignPostEscapesBeforeSigning(t *testing.T) {
	req := rest.NewRequest(http.MethodPost, "https://api.mexc.com/api/v3/order")
	req.Body = rest.Params{{Key: "symbol", Value: "BTCUSDT"}, {Key: "note", Value: "a (b)"}}
	req.Extra = credsExtra()

	signed, err := MexcSigner{Clock: fixed}.Sign(req)
	require.NoError(t, err)

	payload := "symbol=BTCUSDT&note=a%20%28b%29&recvWindow=5000&timestamp=1700000000123"
	body := signed.Body.(string)
	assert.True(t, strings.HasPrefix(body, "symbol=BTCUSDT&note=a (b)&recvWindow=5000"), body)
	assert.True(t, strings.HasSuffix(body, "&signature="+HMACSHA256Hex("secret", payload)))
	assert.Equal(t, "https://api.mexc.com/api/v3/order", signed.URL)
}

func TestGateSign(t *testing.T) {
	req := rest.NewRequest(http.MethodPost, "https://api.gateio.ws/api/v4/spot/orders")
	req.Encoding = rest.EncodingJSON
	req.Body = map[string]string{"currency_pair": "BTC_USDT"}
	req.Extra = credsExtra()

	signed, err := GateSigner{Clock: fixed}.Sign(req)
	require.NoError(t, err)

	body := `{"currency_pair":"BTC_USDT"}`
	assert.Equal(t, body, signed.Body)
	payload := "POST\n/api/v4/spot/orders\n\n" + SHA512Hex(body) + "\n1700000000"
	assert.Equal(t, HMACSHA512Hex("secret", payload), signed.Header["SIGN"])
	assert.Equal(t, "1700000000", signed.Header["Timestamp"])
	assert.Equal(t, "api-key", signed.Header["KEY"])

	get := rest.NewRequest(http.MethodGet, "https://api.gateio.ws/api/v4/spot/accounts")
	get.Params.Add("currency", "USDT")
	get.Extra = credsExtra()
	signed, err = GateSigner{Clock: fixed}.Sign(get)
	require.NoError(t, err)
	payload = "GET\n/api/v4/spot/accounts\ncurrency=USDT\n" + SHA512Hex("") + "\n1700000000"
	assert.Equal(t, HMACSHA512Hex("secret", payload), signed.Header["SIGN"])
}

func TestSignersSatisfyRestSigner(t *testing.T) {
	for _, s := range []rest.Signer{BinanceSigner{}, MexcSigner{}, GateSigner{}} {
		_, err := s.Sign(&rest.Request{Method: http.MethodGet})
		assert.ErrorIs(t, err, ErrMissingKey)
	}

	// sanity check of the helper against crypto/hmac directly
	h := hmac.New(sha256.New, []byte("k"))
	h.Write([]byte("m"))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), HMACSHA256Hex("k", "m"))
}
