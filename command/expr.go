package command

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/itchyny/gojq"
)

// ErrInvalidExpression is returned when an arithmetic expression is rejected
// or cannot be evaluated.
var ErrInvalidExpression = errors.New("command: invalid expression")

const exprCharset = "0123456789. +-*/%()"

// Evaluate computes a work coordinate expression.
//
// Every "#" is replaced by current. An expression starting with "*" or "/"
// is applied to current, so "* 2" doubles it. Only digits, ".", the
// operators + - * / %, parentheses and spaces are accepted.
func Evaluate(expr string, current float64) (float64, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	value := "(" + FormatNumber(current) + ")"
	if src[0] == '*' || src[0] == '/' {
		src = value + " " + src
	}
	src = strings.ReplaceAll(src, "#", value)

	if i := strings.IndexFunc(src, func(r rune) bool { return !strings.ContainsRune(exprCharset, r) }); i >= 0 {
		return 0, fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidExpression, src[i], expr)
	}

	query, err := gojq.Parse(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, expr, err)
	}

	v, ok := query.Run(nil).Next()
	if !ok {
		return 0, fmt.Errorf("%w: %q yields no value", ErrInvalidExpression, expr)
	}

	var result float64
	switch n := v.(type) {
	case error:
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, expr, n)
	case int:
		result = float64(n)
	case float64:
		result = n
	case *big.Int:
		result, _ = new(big.Float).SetInt(n).Float64()
	default:
		return 0, fmt.Errorf("%w: %q yields %T", ErrInvalidExpression, expr, v)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidExpression, expr)
	}

	return result, nil
}
