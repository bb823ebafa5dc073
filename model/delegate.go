package model

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/qb"

	"github.com/go-openapi/inflect"
)

// aliases maps operation names whose Go method does not follow from the
// snake_case name.
var aliases = map[string]string{
	"dbprefix":              "DBPrefix",
	"error":                 "Err",
	"get_compiled_select":   "CompiledSelect",
	"get_compiled_insert":   "CompiledInsert",
	"get_compiled_update":   "CompiledUpdate",
	"get_compiled_delete":   "CompiledDelete",
	"query_undeleted":       "ScopeUndeleted",
	"query_deleted":         "ScopeDeleted",
	"get_table":             "Table",
	"set_table":             "SetTable",
	"get_primary_key":       "PrimaryKey",
	"get_table_columns":     "Columns",
	"get_available_columns": "AvailableColumns",
}

// initialisms are words spelled in upper case in Go method names.
var initialisms = map[string]string{
	"db":   "DB",
	"id":   "ID",
	"ids":  "IDs",
	"sql":  "SQL",
	"uuid": "UUID",
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	builderType = reflect.TypeOf((*qb.Builder)(nil))
	modelType   = reflect.TypeOf((*Model)(nil))
)

// Call invokes the operation name with args. The name may be given in Go
// form ("CountAll") or in snake_case ("count_all"). The operation is looked
// up on the value registered with WithSelf, then on the Model, then on the
// Builder. A leading context.Context parameter receives ctx, and a trailing
// error result is returned as the error. A Builder result is replaced with
// the Model, so chained calls go through the Model again.
//
// Call fails with an UndefinedOperation error when no method matches name,
// and with a Configuration error when args do not fit the method.
//
//	n, err := m.Call(ctx, "where", "status", 1)
//	n, err = m.Call(ctx, "count_all_results")
func (m *Model) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := m.lookup(name)
	if !ok {
		return nil, ardent.NewUndefinedOperationError(name, m.Table())
	}
	in, err := arguments(ctx, fn.Type(), args)
	if err != nil {
		return nil, ardent.NewConfigurationError(name, m.Table(), err)
	}
	return m.results(name, fn.Call(in))
}

func (m *Model) lookup(name string) (reflect.Value, bool) {
	candidates := methodNames(name)
	for _, recv := range m.receivers() {
		v := reflect.ValueOf(recv)
		for _, n := range candidates {
			if n == "Call" {
				continue
			}
			if fn := v.MethodByName(n); fn.IsValid() {
				return fn, true
			}
		}
	}
	return reflect.Value{}, false
}

func (m *Model) receivers() []any {
	if m.self != nil && m.self != any(m) {
		return []any{m.self, m, m.b}
	}
	return []any{m, m.b}
}

// methodNames returns the Go method names an operation name may refer to.
func methodNames(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	names := []string{name}
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		names = append(names, alias)
	}
	words := strings.Split(inflect.Underscore(name), "_")
	var camel, initial strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		c := inflect.Capitalize(w)
		camel.WriteString(c)
		if up, ok := initialisms[w]; ok {
			c = up
		}
		initial.WriteString(c)
	}
	return append(names, camel.String(), initial.String())
}

// arguments converts args to the parameters of a method of type t.
func arguments(ctx context.Context, t reflect.Type, args []any) ([]reflect.Value, error) {
	var in []reflect.Value
	params := make([]reflect.Type, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		params = append(params, t.In(i))
	}
	if len(params) > 0 && params[0] == contextType {
		in = append(in, reflect.ValueOf(ctx))
		params = params[1:]
	}
	fixed := len(params)
	if t.IsVariadic() {
		fixed--
	}
	switch {
	case len(args) < fixed:
		return nil, fmt.Errorf("expected at least %d arguments, got %d", fixed, len(args))
	case !t.IsVariadic() && len(args) > fixed:
		return nil, fmt.Errorf("expected %d arguments, got %d", fixed, len(args))
	}
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= fixed {
			pt = params[fixed].Elem()
		} else {
			pt = params[i]
		}
		v, err := convert(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// convert returns a as a value of type t. Besides assignable values, it
// accepts numbers of another numeric type, maps of the same shape (for
// example map[string]any for qb.Row or qb.Filter) and slices of convertible
// elements.
func convert(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case t == reflect.TypeOf((*qb.Filter)(nil)).Elem() && v.Type().ConvertibleTo(reflect.TypeOf(qb.Where{})):
		return v.Convert(reflect.TypeOf(qb.Where{})), nil
	case isNumber(v.Kind()) && isNumber(t.Kind()),
		v.Kind() == t.Kind() && v.Kind() != reflect.Slice && v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	case v.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		s := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convert(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			s.Index(i).Set(e)
		}
		return s, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// results converts the results of a method call. A trailing error is
// returned as the error; no other result gives nil, one result gives the
// value and several results give a []any.
func (m *Model) results(name string, out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = m.rebind(v)
	}
	if err != nil {
		err = wrap(name, m.Table(), err)
	}
	switch len(values) {
	case 0:
		return nil, err
	case 1:
		return values[0], err
	default:
		return values, err
	}
}

// rebind replaces the Builder of the model, and the Model itself when a
// self value is registered, with the outermost receiver.
func (m *Model) rebind(v reflect.Value) any {
	switch v.Type() {
	case builderType:
		if v.Interface().(*qb.Builder) != m.b {
			return v.Interface()
		}
	case modelType:
		if v.Interface().(*Model) != m {
			return v.Interface()
		}
	default:
		return v.Interface()
	}
	if m.self != nil {
		return m.self
	}
	return m
}
