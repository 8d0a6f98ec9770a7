// Package main содержит multichecker для статического анализа кода edgelink.
//
// Набор анализаторов:
//
// 1. Стандартные анализаторы из golang.org/x/tools/go/analysis/passes:
//   - nilness, shadow, unreachable, printf, assign, atomic, bools, buildtag, copylocks
//   - httpresponse: использование resp.Body до проверки ошибки
//   - lostcancel: потерянный cancel из context.WithTimeout/WithCancel
//   - errorsas: второй аргумент errors.As не указатель
//   - unusedresult: отброшенный результат чистых функций (fmt.Sprintf и т.п.)
//   - structtag: некорректные теги json/koanf/validate
//
// 2. Все анализаторы класса SA из staticcheck.io.
//
// 3. Выборочные анализаторы других классов staticcheck.io:
//   - ST1000, ST1005 (строки ошибок со строчной буквы), ST1016
//   - S1000, S1002, S1008, S1021
//
// 4. errcheck: необработанные ошибки.
//
// 5. Собственный анализатор noexit: запрет прямого вызова os.Exit в main.
//
// Использование:
//
//	go run ./cmd/staticlint ./...
package main

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/buildtag"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/kisielk/errcheck/errcheck"

	"github.com/tempizhere/edgelink/cmd/staticlint/noexit"
)

// extraChecks анализаторы stylecheck и simple сверх класса SA
var extraChecks = map[string]bool{
	"ST1000": true,
	"ST1005": true,
	"ST1016": true,
	"S1000":  true,
	"S1002":  true,
	"S1008":  true,
	"S1021":  true,
}

// selected отбирает из набора staticcheck анализаторы по имени
func selected(set []*lint.Analyzer, keep func(name string) bool) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, a := range set {
		if keep(a.Analyzer.Name) {
			out = append(out, a.Analyzer)
		}
	}
	return out
}

func analyzers() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		nilness.Analyzer,
		shadow.Analyzer,
		unreachable.Analyzer,
		printf.Analyzer,
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		buildtag.Analyzer,
		copylock.Analyzer,
		httpresponse.Analyzer,
		lostcancel.Analyzer,
		errorsas.Analyzer,
		unusedresult.Analyzer,
		structtag.Analyzer,
	}

	list = append(list, selected(staticcheck.Analyzers, func(string) bool { return true })...)
	list = append(list, selected(stylecheck.Analyzers, func(name string) bool { return extraChecks[name] })...)
	list = append(list, selected(simple.Analyzers, func(name string) bool { return extraChecks[name] })...)

	list = append(list, errcheck.Analyzer, noexit.NoExitAnalyzer)
	return list
}

func main() {
	multichecker.Main(analyzers()...)
}
