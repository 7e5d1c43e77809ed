package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerialize_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"Integral number", `{"Year":2020}`},
		{"Fractional number", `{"Year":2020.0}`},
		{"Trailing zeros", `{"Amount":10.500}`},
		{"Exponent", `{"Big":1e10,"Small":-2.5E-3}`},
		{"Negative zero", `{"z":-0}`},
		{"Large integer", `{"id":123456789012345678901234567890}`},
		{"Key order", `{"z":1,"a":2,"m":{"y":true,"b":false}}`},
		{"Array order", `[3,1,2,"b","a"]`},
		{"Scalars", `{"n":null,"t":true,"f":false,"s":"","w":" "}`},
		{"Nested", `{"a":[{"b":[[],{}]},null]}`},
		{"Escapes", `{"q":"say \"hi\"\n\ttab\\","ctl":"\u0001"}`},
		{"HTML is not escaped", `{"h":"<a href=\"x\">&</a>"}`},
		{"Unicode", `{"name":"Bjørn ☃"}`},
		{"Top-level scalar", `42.0`},
		{"Top-level string", `"text"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseString(tt.in)
			require.NoError(t, err)
			out := SerializeString(n)
			assert.Equal(t, tt.in, out)

			again, err := ParseString(out)
			require.NoError(t, err)
			assert.True(t, n.Equal(again))
		})
	}
}

func TestParse_NormalizesWhitespace(t *testing.T) {
	n, err := ParseString("{\n  \"a\" : [ 1 , 2.0 ],\n  \"b\" : { }\n}\n")
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2.0],"b":{}}`, SerializeString(n))
}

func TestParse_UnicodeEscapesAreDecoded(t *testing.T) {
	n, err := ParseString(`"\u00e9\u2028"`)
	require.NoError(t, err)
	assert.Equal(t, "\u00e9\u2028", n.String)
	assert.Equal(t, "\"\u00e9\\u2028\"", SerializeString(n))
}

func TestParse_DuplicateKeys(t *testing.T) {
	n, err := ParseString(`{"a":1,"b":2,"a":3}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"b":2}`, SerializeString(n))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line int
	}{
		{"Empty", ``, 1},
		{"Truncated object", `{"a":1`, 1},
		{"Missing colon", `{"a" 1}`, 1},
		{"Trailing comma", `[1,2,]`, 1},
		{"Bare word", `nope`, 1},
		{"Leading zero", `{"n":01}`, 1},
		{"Trailing data", `{"a":1} {"b":2}`, 1},
		{"Second line", "{\n\"a\":}", 2},
		{"Single quotes", `{'a':1}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseString(tt.in)
			assert.Nil(t, n)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
			assert.LessOrEqual(t, perr.Offset, int64(len(tt.in)))
		})
	}
}

func TestSerializeIndent(t *testing.T) {
	n := mustParse(t, `{"a":[1,2.0],"b":{}}`)
	out := string(SerializeIndent(n, "", "  "))
	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2.0\n  ],\n  \"b\": {}\n}", out)
}

func TestNode_JSONInterop(t *testing.T) {
	type envelope struct {
		CaseID string `json:"caseId"`
		Data   *Node  `json:"data"`
	}

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{"caseId":"c1","data":{"z":1.0,"a":2}}`), &env))
	assert.Equal(t, `{"z":1.0,"a":2}`, SerializeString(env.Data))

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Equal(t, `{"caseId":"c1","data":{"z":1.0,"a":2}}`, string(out))
}
