// Package noexit содержит анализатор, запрещающий прямой вызов os.Exit в функции main пакета main.
//
// Завершение процесса из main минует отложенные вызовы: не закрываются соединения с базой,
// не сбрасывается буфер логгера и не останавливаются серверы.
package noexit

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// NoExitAnalyzer проверяет отсутствие прямых вызовов os.Exit в функции main пакета main
var NoExitAnalyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "запрещает использование прямого вызова os.Exit в функции main пакета main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil || generated(pass, fn) {
			return
		}
		ast.Inspect(fn.Body, func(node ast.Node) bool {
			// Замыкания внутри main выполняются отдельно и не проверяются
			if _, ok := node.(*ast.FuncLit); ok {
				return false
			}
			call, ok := node.(*ast.CallExpr)
			if ok && isOSExit(pass, call) {
				pass.Reportf(call.Pos(), "direct call to os.Exit in main function is prohibited")
			}
			return true
		})
	})
	return nil, nil
}

// isOSExit сообщает, вызывает ли выражение функцию Exit пакета os
func isOSExit(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Exit" {
		return false
	}
	obj, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	return ok && obj.Pkg() != nil && obj.Pkg().Path() == "os"
}

// generated отсеивает main, сгенерированный go test в кэше сборки
func generated(pass *analysis.Pass, fn *ast.FuncDecl) bool {
	name := pass.Fset.Position(fn.Pos()).Filename
	return strings.Contains(name, "go-build") || strings.HasSuffix(name, "_testmain.go")
}
