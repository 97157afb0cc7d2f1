package scanner

import (
	"testing"

	"github.com/mna/pascal/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []TokenAndValue {
	t.Helper()
	var errs []string
	var s Scanner
	s.Init([]byte(src), func(pos token.Pos, msg string) {
		errs = append(errs, msg)
	})
	var out []TokenAndValue
	for {
		k, v := s.Scan()
		out = append(out, TokenAndValue{Kind: k, Value: v})
		if k == token.EOF {
			break
		}
	}
	require.Empty(t, errs, "unexpected scan errors: %v", errs)
	return out
}

func TestScanIdentsAndKeywords(t *testing.T) {
	toks := scanAll(t, "BEGIN node End")
	require.Equal(t, token.BEGIN, toks[0].Kind)
	require.Equal(t, token.IDENT, toks[1].Kind)
	require.Equal(t, "node", toks[1].Value.Name)
	require.Equal(t, token.END, toks[2].Kind)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, "123 3.14 1e10 $FF &17")
	require.Equal(t, token.INTLIT, toks[0].Kind)
	require.EqualValues(t, 123, toks[0].Value.IntVal)
	require.Equal(t, token.REALLIT, toks[1].Kind)
	require.Equal(t, token.REALLIT, toks[2].Kind)
	require.Equal(t, token.INTLIT, toks[3].Kind)
	require.EqualValues(t, 255, toks[3].Value.IntVal)
	require.Equal(t, token.INTLIT, toks[4].Kind)
	require.EqualValues(t, 15, toks[4].Value.IntVal)
}

func TestScanStrings(t *testing.T) {
	toks := scanAll(t, `'abc' 'it''s' 'x'`)
	require.Equal(t, token.STRINGLIT, toks[0].Kind)
	require.Equal(t, "abc", toks[0].Value.Str)
	require.Equal(t, token.STRINGLIT, toks[1].Kind)
	require.Equal(t, "it's", toks[1].Value.Str)
	require.Equal(t, token.CHARLIT, toks[2].Kind)
	require.Equal(t, "x", toks[2].Value.Str)
}

func TestScanOperators(t *testing.T) {
	toks := scanAll(t, ":= <> <= >= .. ><")
	want := []token.Kind{token.ASSIGN, token.NEQ, token.LE, token.GE, token.DOTDOT, token.DIAMONDAND, token.EOF}
	for i, k := range want {
		require.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}

func TestScanComments(t *testing.T) {
	toks := scanAll(t, "a { a comment } + (* another *) b")
	require.Equal(t, token.IDENT, toks[0].Kind)
	require.Equal(t, token.PLUS, toks[1].Kind)
	require.Equal(t, token.IDENT, toks[2].Kind)
	require.Equal(t, "b", toks[2].Value.Name)
}
