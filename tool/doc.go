// Package tool defines the tools a model can call during a turn and the
// registry that holds them.
//
// A Tool has a name, a description, a JSON schema for its arguments and a Call
// method. Tools are collected once into a Registry, which validates names and
// schemas up front and then serves lookups and executions for the lifetime of
// the process:
//
//	reg, err := tool.NewRegistry(
//		tool.NewAdd(),
//		tool.NewWikipedia(),
//		tool.NewArxiv(),
//	)
//	if err != nil {
//		return err
//	}
//	out, err := reg.Execute(ctx, "add", map[string]any{"a": 2, "b": 2}) // "4"
//
// # Built-in tools
//
//   - add: sums two numbers
//   - wikipedia: top page extract, via langchaingo's wikipedia tool
//   - arxiv: top paper from the arXiv export API
//   - tavily_search: web search through Tavily (TAVILY_API_KEY)
//   - brave_search: web search through Brave (BRAVE_API_KEY)
//
// Any langchaingo tools.Tool can be adapted with FromLangchain, and plain
// functions with NewFuncTool.
package tool
