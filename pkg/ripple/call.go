package ripple

// Call invokes callee with args on behalf of node. Native results are
// returned directly; compiled callees start a new evaluation whose result
// is pushed onto the operand stack when it finishes, and Call returns nil.
func (ev *Evaluator) Call(node Node, callee Value, args []Value) Value {
	switch fn := callee.(type) {
	case *Function:
		def := fn.Definition
		if exc := ev.checkInputs(node, def.Inputs, args); exc != nil {
			return exc
		}
		name := def.Name
		if name == "" {
			name = "ƒ"
		}
		e := NewEvaluation(def, name, ev.ctx.Compile(def.Body), fn.Closure)
		bindInputs(e, def.Inputs, args)
		ev.StartEvaluation(e)
		return nil

	case *StructureDefinitionValue:
		def := fn.Definition
		if exc := ev.checkInputs(node, def.Inputs, args); exc != nil {
			return exc
		}
		e := NewEvaluation(def, "•"+def.Name, ev.ctx.CompileConstructor(def), fn.Closure)
		bindInputs(e, def.Inputs, args)
		ev.StartEvaluation(e)
		return nil

	case *BasisFunctionValue:
		return ev.callBasis(node, fn, args)

	case *StreamConstructor:
		evaluate, ok := node.(*Evaluate)
		if !ok {
			return ev.Exception(StreamFault, node, "%s can only be constructed by a call", fn)
		}
		return ev.program.stream(ev, evaluate, fn.Definition, args)
	}
	return ev.Exception(NotAFunction, node, "%s is not a function", callee)
}

func (ev *Evaluator) callBasis(node Node, fn *BasisFunctionValue, args []Value) Value {
	f := fn.Function
	if len(args) != len(f.Inputs) {
		return ev.Exception(InputMismatch, node, "%s takes %d inputs, got %d", f.Name, len(f.Inputs), len(args))
	}
	for i, in := range f.Inputs {
		if in.Type != nil && !Accepts(in.Type, args[i].Type(), ev.ctx) {
			return ev.TypeMismatch(node, in.Type, args[i])
		}
	}
	if f.Native != nil {
		return f.Native(ev, node, fn.Receiver, args)
	}
	e := NewEvaluation(node, f.String(), f.Steps, nil)
	e.scope.Bind(receiverName, fn.Receiver)
	for i, in := range f.Inputs {
		e.scope.Bind(in.Name, args[i])
	}
	ev.StartEvaluation(e)
	return nil
}

// checkInputs verifies the number and declared types of args.
func (ev *Evaluator) checkInputs(node Node, inputs []*Bind, args []Value) *Exception {
	if len(args) != len(inputs) {
		return ev.Exception(InputMismatch, node, "expected %d inputs, got %d", len(inputs), len(args))
	}
	for i, in := range inputs {
		if in.Type == nil {
			continue
		}
		declared := in.Type.Resolve(ev.ctx)
		if !Accepts(declared, args[i].Type(), ev.ctx) {
			return ev.TypeMismatch(node, declared, args[i])
		}
	}
	return nil
}

func bindInputs(e *Evaluation, inputs []*Bind, args []Value) {
	for i, in := range inputs {
		e.scope.Bind(in.Name, args[i])
	}
}
