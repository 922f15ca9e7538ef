package jack_test

import (
	"testing"

	"its-hmny.dev/nand2tetris/pkg/jack"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

func newProgram(classes ...jack.Class) jack.Program {
	program := jack.Program{}
	for _, class := range classes {
		program[class.Name] = class
	}
	return program
}

func TestLiteralExpr(t *testing.T) {
	lowerer := jack.NewLowerer(newProgram(jack.Class{Name: "Main"}))

	test := func(expr jack.LiteralExpr, expected []vm.Operation, fail bool) {
		ops, err := lowerer.HandleLiteralExpr(expr)
		if err != nil && !fail {
			t.Fatalf("unexpected error: %v", err)
		}
		if err == nil && fail {
			t.Fatalf("expected an error, got none")
		}
		if !fail && len(ops) != len(expected) {
			t.Fatalf("expected %d ops, got %d (%+v)", len(expected), len(ops), ops)
		}
	}

	t.Run("Integer literal", func(t *testing.T) {
		test(jack.LiteralExpr{Type: jack.Int, Value: "42"},
			[]vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 42}}, false)
	})

	t.Run("Boolean literal", func(t *testing.T) {
		test(jack.LiteralExpr{Type: jack.Bool, Value: "true"}, []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ArithmeticOp{Operation: vm.Not},
		}, false)
	})

	t.Run("Null literal", func(t *testing.T) {
		test(jack.LiteralExpr{Type: jack.Object, Value: "null"},
			[]vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, false)
	})

	t.Run("String literal allocates via String.new and appends char by char", func(t *testing.T) {
		test(jack.LiteralExpr{Type: jack.String, Value: "ab"}, []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
			vm.FuncCallOp{Name: "String.new", NArgs: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('a')},
			vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('b')},
			vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		}, false)
	})

	t.Run("Invalid integer literal", func(t *testing.T) {
		test(jack.LiteralExpr{Type: jack.Int, Value: "not-a-number"}, nil, true)
	})
}

func TestBinaryExpr(t *testing.T) {
	lowerer := jack.NewLowerer(newProgram(jack.Class{Name: "Main"}))

	lhs := jack.LiteralExpr{Type: jack.Int, Value: "1"}
	rhs := jack.LiteralExpr{Type: jack.Int, Value: "2"}

	test := func(op jack.ExprType, lastOp vm.Operation) {
		ops, err := lowerer.HandleBinaryExpr(jack.BinaryExpr{Type: op, Lhs: lhs, Rhs: rhs})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ops) == 0 {
			t.Fatalf("expected at least one operation")
		}
		if ops[len(ops)-1] != lastOp {
			t.Errorf("expected last op %+v, got %+v", lastOp, ops[len(ops)-1])
		}
	}

	t.Run("Arithmetic", func(t *testing.T) {
		test(jack.Plus, vm.ArithmeticOp{Operation: vm.Add})
		test(jack.Minus, vm.ArithmeticOp{Operation: vm.Sub})
	})

	t.Run("Comparison", func(t *testing.T) {
		test(jack.Equal, vm.ArithmeticOp{Operation: vm.Eq})
		test(jack.LessThan, vm.ArithmeticOp{Operation: vm.Lt})
		test(jack.GreatThan, vm.ArithmeticOp{Operation: vm.Gt})
	})

	t.Run("Multiply/Divide lower to stdlib calls", func(t *testing.T) {
		test(jack.Multiply, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2})
		test(jack.Divide, vm.FuncCallOp{Name: "Math.divide", NArgs: 2})
	})
}

func TestClassLowering(t *testing.T) {
	// A minimal 'Main' class with a single void function returning immediately, exercises
	// the full Class -> Subroutine -> Statement pipeline end to end.
	class := jack.Class{Name: "Main"}
	class.Subroutines.Set("main", jack.Subroutine{
		Name:       "main",
		Type:       jack.Function,
		Return:     jack.Void,
		Statements: []jack.Statement{jack.ReturnStmt{}},
	})

	lowerer := jack.NewLowerer(newProgram(class))
	program, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	module, ok := program["Main"]
	if !ok {
		t.Fatalf("expected a 'Main' module in the lowered program")
	}

	decl, ok := module[0].(vm.FuncDecl)
	if !ok || decl.Name != "Main.main" || decl.NLocal != 0 {
		t.Fatalf("expected first op to be 'function Main.main 0', got %+v", module[0])
	}
}
