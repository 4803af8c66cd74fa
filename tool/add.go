package tool

import (
	"context"
	"strconv"
)

// NewAdd returns the "add" tool, which sums two numbers.
func NewAdd() *FuncTool {
	schema := ObjectSchema(map[string]Property{
		"a": {Type: "number", Description: "First number"},
		"b": {Type: "number", Description: "Second number"},
	}, "a", "b")

	return NewFuncTool("add", "Add two numbers and return the sum.", schema,
		func(_ context.Context, args map[string]any) (string, error) {
			a, err := Number(args, "a")
			if err != nil {
				return "", err
			}
			b, err := Number(args, "b")
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(a+b, 'f', -1, 64), nil
		})
}
