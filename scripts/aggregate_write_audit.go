package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// callsite is one write reaching the database from outside internal/data.
type callsite struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Target   string `json:"target"`
	Method   string `json:"method"`
}

type auditReport struct {
	FilesScanned        int        `json:"files_scanned"`
	DirectRepoWrites    []callsite `json:"direct_repo_writes"`
	AggregateWriteCalls []callsite `json:"aggregate_write_calls"`
}

var repoSetFields = map[string]bool{
	"Organisation":      true,
	"Prestation":        true,
	"Convention":        true,
	"ConventionDetail":  true,
	"Annex":             true,
	"Avenant":           true,
	"PrestationPricing": true,
}

var repoWriteMethods = map[string]bool{
	"Create":                   true,
	"UpdateFields":             true,
	"Delete":                   true,
	"Supersede":                true,
	"LockByID":                 true,
	"SetActivationAtByAvenant": true,
	"SetStartDateByAvenant":    true,
}

var aggregateFields = map[string]bool{
	"Conventions":       true,
	"Annexes":           true,
	"Avenants":          true,
	"PrestationPricing": true,
}

var aggregateWriteMethods = map[string]bool{
	"Create":                  true,
	"Update":                  true,
	"Delete":                  true,
	"Activate":                true,
	"Expire":                  true,
	"CreateAnnex":             true,
	"DuplicateFromConvention": true,
	"DuplicateFromAvenant":    true,
}

func main() {
	strict := flag.Bool("strict", false, "exit 1 when a direct repo write is found")
	flag.Parse()
	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}
	dirs := []string{
		filepath.Join(root, "cmd"),
		filepath.Join(root, "internal", "app"),
		filepath.Join(root, "internal", "jobs"),
	}

	report, err := audit(root, dirs)
	if err != nil {
		exitf("audit: %v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if *strict && len(report.DirectRepoWrites) > 0 {
		os.Exit(1)
	}
}

// audit walks dirs and classifies every x.Repos.<Repo>.<Write>() and
// x.<Aggregate>.<Write>() call. Test files are skipped.
func audit(root string, dirs []string) (auditReport, error) {
	var report auditReport
	fset := token.NewFileSet()
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				return nil
			}
			f, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			report.FilesScanned++
			inspectFile(fset, f, filepath.ToSlash(rel), &report)
			return nil
		})
		if err != nil {
			return report, err
		}
	}
	sortCallsites(report.DirectRepoWrites)
	sortCallsites(report.AggregateWriteCalls)
	return report, nil
}

func inspectFile(fset *token.FileSet, file *ast.File, relFile string, report *auditReport) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		fn := fd.Name.Name
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			chain := selectorChain(call.Fun)
			if len(chain) < 2 {
				return true
			}
			method := chain[len(chain)-1]
			target := chain[len(chain)-2]
			site := callsite{
				File:     relFile,
				Line:     fset.Position(call.Pos()).Line,
				Function: fn,
				Target:   target,
				Method:   method,
			}
			switch {
			case len(chain) >= 3 && chain[len(chain)-3] == "Repos" && repoSetFields[target] && repoWriteMethods[method]:
				report.DirectRepoWrites = append(report.DirectRepoWrites, site)
			case aggregateFields[target] && aggregateWriteMethods[method]:
				report.AggregateWriteCalls = append(report.AggregateWriteCalls, site)
			}
			return true
		})
	}
}

// selectorChain flattens a.b.c into [a b c]; anything but identifiers and
// selectors ends the chain.
func selectorChain(expr ast.Expr) []string {
	var out []string
	for {
		switch e := expr.(type) {
		case *ast.SelectorExpr:
			out = append(out, e.Sel.Name)
			expr = e.X
		case *ast.Ident:
			out = append(out, e.Name)
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
			return out
		default:
			return nil
		}
	}
}

func sortCallsites(sites []callsite) {
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].File == sites[j].File {
			return sites[i].Line < sites[j].Line
		}
		return sites[i].File < sites[j].File
	})
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
