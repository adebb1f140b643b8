package compiler

import "testing"

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	p := NewParser(src)
	prog := p.Parse()
	if err := p.Err(); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func TestParseFunctionDecl(t *testing.T) {
	prog := parseOK(t, `
		function greet($name) {
			return "hello";
		}
	`)
	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(prog.Decls))
	}
	fn, ok := prog.Decls[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("expected *FunctionDecl, got %T", prog.Decls[0])
	}
	if fn.Name != "greet" {
		t.Fatalf("expected name greet, got %q", fn.Name)
	}
	if len(fn.Params) != 1 || fn.Params[0] != "name" {
		t.Fatalf("unexpected params: %v", fn.Params)
	}
}

func TestParseGlobalVsLocalVarSigils(t *testing.T) {
	prog := parseOK(t, `
		function f() {
			%local = 1;
			$global = 2;
		}
	`)
	fn := prog.Decls[0].(*FunctionDecl)
	if len(fn.Body.Stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(fn.Body.Stmts))
	}
}

func TestParseIfWhileForBreakContinue(t *testing.T) {
	parseOK(t, `
		function f($n) {
			if (%n > 0) {
				while (%n > 0) {
					%n -= 1;
					if (%n == 5) {
						break;
					}
					continue;
				}
			} else {
				for (%i = 0; %i < %n; %i += 1) {
					%n += %i;
				}
			}
		}
	`)
}

func TestParseForeachAndSwitch(t *testing.T) {
	parseOK(t, `
		function f($list) {
			foreach ($item in %list) {
				switch ($item) {
					case 1:
					case 2:
						break;
					default:
						break;
				}
			}
		}
	`)
}

func TestParseTryThrowAssert(t *testing.T) {
	parseOK(t, `
		function f() {
			try {
				throw "boom";
			} catch ($e) {
				assert($e != 0);
			}
		}
	`)
}

func TestParseNewObjectLiteral(t *testing.T) {
	prog := parseOK(t, `
		function f() {
			%obj = new ScriptObject(MyObj) {
				field = 1;
				new ScriptObject() {
				};
			};
		}
	`)
	fn := prog.Decls[0].(*FunctionDecl)
	assign := fn.Body.Stmts[0].(*ExprStmt).Expr.(*AssignExpr)
	newObj, ok := assign.Value.(*NewObjectExpr)
	if !ok {
		t.Fatalf("expected *NewObjectExpr, got %T", assign.Value)
	}
	if len(newObj.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(newObj.Fields))
	}
	if len(newObj.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(newObj.Children))
	}
}

func TestParseStringInterpolation(t *testing.T) {
	parts, isVar := splitInterpolation("count: %n items")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != "count: " || isVar[0] {
		t.Fatalf("unexpected first part %q isVar=%v", parts[0], isVar[0])
	}
	if parts[1] != "n" || !isVar[1] {
		t.Fatalf("unexpected second part %q isVar=%v", parts[1], isVar[1])
	}
	if parts[2] != " items" || isVar[2] {
		t.Fatalf("unexpected third part %q isVar=%v", parts[2], isVar[2])
	}
}

func TestParsePackageDecl(t *testing.T) {
	prog := parseOK(t, `
		package MyPackage {
			function f() {
				return 1;
			}
		};
	`)
	pkg, ok := prog.Decls[0].(*PackageDecl)
	if !ok {
		t.Fatalf("expected *PackageDecl, got %T", prog.Decls[0])
	}
	if len(pkg.Decls) != 1 {
		t.Fatalf("expected 1 function in package, got %d", len(pkg.Decls))
	}
}

func TestParseDocblockAttachesToFunction(t *testing.T) {
	prog := parseOK(t, `
		/*! Computes the square of a number. */
		function square($n) {
			return %n * %n;
		}
	`)
	fn := prog.Decls[0].(*FunctionDecl)
	if fn.Docblock == "" {
		t.Fatalf("expected docblock to attach to function")
	}
}
