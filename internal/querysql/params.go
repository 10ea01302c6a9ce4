package querysql

// Params collects the bound arguments of one statement in placeholder order.
//
// A Params is owned by a single statement build and is not safe for concurrent
// use.
type Params struct {
	args []any
}

// NewParams returns an empty collector.
func NewParams() *Params {
	return &Params{}
}

// Push appends one argument.
func (p *Params) Push(v any) {
	p.args = append(p.args, v)
}

// Extend appends arguments in order.
func (p *Params) Extend(vals ...any) {
	p.args = append(p.args, vals...)
}

// ExtendSlice appends every element of vals in order.
func ExtendSlice[T any](p *Params, vals []T) {
	for _, v := range vals {
		p.args = append(p.args, v)
	}
}

// Len returns the number of collected arguments.
func (p *Params) Len() int {
	return len(p.args)
}

// Args returns the arguments for database/sql.
func (p *Params) Args() []any {
	return p.args
}
