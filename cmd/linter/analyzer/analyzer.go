package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const (
	analyzerName = "forbiddencalls"
	analyzerDoc  = "reports panic, log.Fatal, log.Panic and os.Exit outside the main function"
)

// Analyzer reports calls that terminate the process from library code.
var Analyzer = &analysis.Analyzer{
	Name:     analyzerName,
	Doc:      analyzerDoc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// forbidden maps an import path to the functions that may only be called
// from main.
var forbidden = map[string]map[string]string{
	"log": {
		"Fatal":   "log.Fatal",
		"Fatalf":  "log.Fatal",
		"Fatalln": "log.Fatal",
		"Panic":   "log.Panic",
		"Panicf":  "log.Panic",
		"Panicln": "log.Panic",
	},
	"github.com/rs/zerolog/log": {
		"Fatal": "log.Fatal",
		"Panic": "log.Panic",
	},
	"os": {
		"Exit": "os.Exit",
	},
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.FuncDecl)(nil),
		(*ast.CallExpr)(nil),
	}

	var inMain *ast.FuncDecl
	insp.Nodes(nodeFilter, func(node ast.Node, push bool) bool {
		switch n := node.(type) {
		case *ast.FuncDecl:
			if n.Name.Name == "main" && n.Recv == nil {
				if push {
					inMain = n
				} else {
					inMain = nil
				}
			}
		case *ast.CallExpr:
			if push {
				checkCall(pass, n, inMain != nil)
			}
		}
		return true
	})

	return nil, nil
}

func checkCall(pass *analysis.Pass, callExpr *ast.CallExpr, inMain bool) {
	switch fn := callExpr.Fun.(type) {
	case *ast.Ident:
		if fn.Name == "panic" && isBuiltin(pass, fn) {
			pass.Reportf(callExpr.Pos(), "panic is forbidden")
		}
	case *ast.SelectorExpr:
		if inMain {
			return
		}
		if name, ok := forbiddenSelector(pass, fn); ok {
			pass.Reportf(callExpr.Pos(), "%s is forbidden outside main function", name)
		}
	}
}

func isBuiltin(pass *analysis.Pass, ident *ast.Ident) bool {
	if pass.TypesInfo == nil {
		return true
	}
	_, ok := pass.TypesInfo.Uses[ident].(*types.Builtin)
	return ok
}

func forbiddenSelector(pass *analysis.Pass, selectorExpr *ast.SelectorExpr) (string, bool) {
	ident, ok := selectorExpr.X.(*ast.Ident)
	if !ok || pass.TypesInfo == nil {
		return "", false
	}

	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok {
		return "", false
	}

	name, ok := forbidden[pkgName.Imported().Path()][selectorExpr.Sel.Name]
	return name, ok
}
