package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	ReceiveURL: "https://wallet.gooddollar.org/receive",
	SendURL:    "https://wallet.gooddollar.org/send",
}

func TestGenerateShareLink_QueryMode(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		params any
		want   string
	}{
		{
			name:   "send",
			action: ActionSend,
			params: map[string]string{"m": "X"},
			want:   "https://wallet.gooddollar.org/send?paymentCode=eyJtIjoiWCJ9",
		},
		{
			name:   "receive",
			action: ActionReceive,
			params: map[string]string{"m": "X"},
			want:   "https://wallet.gooddollar.org/receive?code=eyJtIjoiWCJ9",
		},
		{
			name:   "slash is escaped twice",
			action: ActionSend,
			params: map[string]string{"m": "???"},
			want:   "https://wallet.gooddollar.org/send?paymentCode=eyJtIjoiPz8%252FIn0",
		},
		{
			name:   "html characters are not escaped",
			action: ActionSend,
			params: map[string]string{"m": "X", "r": "Tom & Jerry <3>"},
			want:   "https://wallet.gooddollar.org/send?paymentCode=eyJtIjoiWCIsInIiOiJUb20gJiBKZXJyeSA8Mz4ifQ",
		},
		{
			name:   "plus is escaped twice",
			action: ActionReceive,
			params: map[string]string{"m": "~~~"},
			want:   "https://wallet.gooddollar.org/receive?code=eyJtIjoifn5%252BIn0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateShareLink(testConfig, tt.action, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodePayload_MatchesJSONStringify(t *testing.T) {
	got, err := EncodePayload(map[string]string{"m": "X", "r": "Tom & Jerry <3>"})
	require.NoError(t, err)
	assert.Equal(t, "eyJtIjoiWCIsInIiOiJUb20gJiBKZXJyeSA8Mz4ifQ", got)
	assert.NotContains(t, got, "XHUw", "html escapes must not reach the payload")

	got, err = EncodePayload(map[string]string{"m": "X", "r": "a\u2028b\\u2029"})
	require.NoError(t, err)
	assert.Equal(t, "eyJtIjoiWCIsInIiOiJh4oCoYlxcdTIwMjkifQ", got)
}

func TestGenerateShareLink_ShortURLMode(t *testing.T) {
	cfg := testConfig
	cfg.EnableShortURL = true

	got, err := GenerateShareLink(cfg, ActionSend, map[string]string{"m": "X"})
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.gooddollar.org/send/eyJtIjoiWCJ9", got)
	assert.NotContains(t, got, "?")

	got, err = GenerateShareLink(cfg, ActionReceive, map[string]string{"m": "???"})
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.gooddollar.org/receive/eyJtIjoiPz8%252FIn0", got)
}

func TestGenerateShareLink_Empty(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		action Action
		params any
	}{
		{name: "empty map", cfg: testConfig, action: ActionSend, params: map[string]string{}},
		{name: "nil params", cfg: testConfig, action: ActionSend, params: nil},
		{name: "empty struct", cfg: testConfig, action: ActionReceive, params: struct{}{}},
		{name: "no destination", cfg: Config{SendURL: "https://x"}, action: ActionReceive, params: map[string]string{"m": "X"}},
		{name: "unknown action", cfg: testConfig, action: Action("pay"), params: map[string]string{"m": "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateShareLink(tt.cfg, tt.action, tt.params)
			assert.ErrorIs(t, err, ErrEmptyLink)
		})
	}
}

func TestGenerateShareLink_UnserializableParams(t *testing.T) {
	_, err := GenerateShareLink(testConfig, ActionSend, map[string]any{"f": func() {}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyLink)
}

func TestPayloadFromLink(t *testing.T) {
	tests := []struct {
		name   string
		link   string
		want   string
		wantOK bool
	}{
		{name: "payment code", link: "https://w.org/send?paymentCode=eyJtIjoiPz8%252FIn0", want: "eyJtIjoiPz8%2FIn0", wantOK: true},
		{name: "code", link: "https://w.org/receive?code=abc&reason=x", want: "abc", wantOK: true},
		{name: "path", link: "https://w.org/receive/eyJtIjoifn5%252BIn0", want: "eyJtIjoifn5%2BIn0", wantOK: true},
		{name: "no payload", link: "https://w.org", wantOK: false},
		{name: "trailing slash", link: "https://w.org/", wantOK: false},
		{name: "bad escape", link: "https://w.org/send?paymentCode=%zz", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PayloadFromLink(tt.link)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractQueryParams(t *testing.T) {
	assert.Equal(t,
		map[string]string{"code": "abc%2B", "reason": "gift", "flag": ""},
		ExtractQueryParams("https://w.org/receive?code=abc%2B&&reason=gift&flag&=skip#frag"),
	)
	assert.Empty(t, ExtractQueryParams("https://w.org/receive"))
	assert.Empty(t, ExtractQueryParams(""))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a%2Bb%2Fc%3D", EscapeComponent("a+b/c="))
	assert.Equal(t, "-_.!~*'()", EscapeComponent("-_.!~*'()"))
	assert.Equal(t, "%20%C3%A9", EscapeComponent(" é"))
	assert.Equal(t, "https://x.org/a?b=c&d=%252F#e", EscapeURI("https://x.org/a?b=c&d=%2F#e"))
	assert.Equal(t, "a%20b", EscapeURI("a b"))
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("send")
	assert.True(t, ok)
	assert.Equal(t, ActionSend, a)
	assert.Equal(t, "paymentCode", a.QueryParam())

	a, ok = ParseAction("receive")
	assert.True(t, ok)
	assert.Equal(t, "code", a.QueryParam())

	_, ok = ParseAction("withdraw")
	assert.False(t, ok)
}
