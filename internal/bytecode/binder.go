package bytecode

// Binder resolves call signatures to declarations. It is a simple key-value
// registry, matching the scope note that the binder/type storage are "simple
// key-value registries used to resolve signatures and class layouts."
//
// FunctionSignature embeds a []Type, which isn't comparable, so it can't be
// a map key directly; the registry is keyed on signature.key() instead, a
// string built from the name and the parameter types' own String() forms.
type Binder struct {
	functions map[string]Declaration
}

// NewBinder creates an empty binder.
func NewBinder() *Binder {
	return &Binder{functions: make(map[string]Declaration)}
}

// Define registers a declaration under its own signature.
func (b *Binder) Define(d Declaration) {
	b.functions[d.Signature.key()] = d
}

// Get resolves a signature to its declaration.
func (b *Binder) Get(sig FunctionSignature) (Declaration, bool) {
	d, ok := b.functions[sig.key()]
	return d, ok
}
