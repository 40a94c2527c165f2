package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidConstructor is returned by Autowire factories for values that are not usable constructors.
var ErrInvalidConstructor = errors.New("invalid constructor")

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// TypeID is the identifier under which a value of type T is looked up by Autowire.
func TypeID[T any]() string {
	return typeID(reflect.TypeFor[T]())
}

func typeID(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}

	if t.Name() == "" || t.PkgPath() == "" {
		return "type:" + prefix + t.String()
	}
	return "type:" + prefix + t.PkgPath() + "." + t.Name()
}

// Provide binds an existing value by its type.
func Provide[T any](c *Container, value T) {
	c.Instance(TypeID[T](), value)
}

// ProvideFactory binds a lazily built shared value by its type.
func ProvideFactory[T any](c *Container, factory func(ctx context.Context, c *Container) (T, error)) {
	c.Singleton(TypeID[T](), func(ctx context.Context, c *Container) (any, error) {
		return factory(ctx, c)
	})
}

// Autowire turns a constructor into a Factory. Every parameter is resolved from the container
// by its type; a context.Context parameter receives the resolution context. The constructor
// must return a single value, or a value and an error. Variadic parameters are left empty.
func Autowire(constructor any) Factory {
	fn := reflect.ValueOf(constructor)

	return func(ctx context.Context, c *Container) (any, error) {
		if err := validateConstructor(fn); err != nil {
			return nil, err
		}

		ft := fn.Type()
		numIn := ft.NumIn()
		if ft.IsVariadic() {
			numIn--
		}

		args := make([]reflect.Value, numIn)
		for i := range numIn {
			paramType := ft.In(i)
			if paramType == contextType {
				args[i] = reflect.ValueOf(ctx)
				continue
			}

			value, err := c.Make(ctx, typeID(paramType))
			if err != nil {
				return nil, fmt.Errorf("autowire %s argument %d: %w", ft, i, err)
			}

			if value == nil {
				args[i] = reflect.Zero(paramType)
				continue
			}

			arg := reflect.ValueOf(value)
			if !arg.Type().AssignableTo(paramType) {
				return nil, fmt.Errorf("autowire %s argument %d: %w: %T", ft, i, ErrTypeMismatch, value)
			}
			args[i] = arg
		}

		out := fn.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			err, _ := out[1].Interface().(error)
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func validateConstructor(fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return fmt.Errorf("%w: not a function", ErrInvalidConstructor)
	}

	ft := fn.Type()
	switch ft.NumOut() {
	case 1:
		return nil
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("%w: second result of %s must be error", ErrInvalidConstructor, ft)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s must return a value or a value and an error", ErrInvalidConstructor, ft)
	}
}
