package property

import (
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Tag overrides the property name of a struct field: `orm:"customerId"`.
const Tag = "orm"

var ErrUnknownProperty = errors.New("property: unknown property")

// Assigner is implemented by pointers to property types that take assigned
// values themselves, such as relation proxies.
type Assigner interface {
	Assign(value any) error
}

var assignerType = reflect.TypeOf((*Assigner)(nil)).Elem()

// Accessor reads and writes entity properties by name.
type Accessor interface {
	Get(entity any, property string) (any, error)
	Set(entity any, property string, value any) error
}

// ReflectAccessor resolves properties to exported struct fields, by `orm` tag
// first and by field name otherwise. Field lookups are cached per type.
type ReflectAccessor struct {
	fields sync.Map // map[reflect.Type]map[string][]int
}

func NewReflectAccessor() *ReflectAccessor {
	return &ReflectAccessor{}
}

func (a *ReflectAccessor) Get(entity any, property string) (any, error) {
	field, err := a.field(entity, property)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

func (a *ReflectAccessor) Set(entity any, property string, value any) error {
	field, err := a.field(entity, property)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Wrapf(ErrUnknownProperty, "%s is not settable", property)
	}
	converted, err := convert(value, field.Type())
	if err != nil {
		return errors.Wrapf(err, "cannot assign %T to property %s", value, property)
	}
	field.Set(converted)
	return nil
}

func (a *ReflectAccessor) field(entity any, property string) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, errors.Wrapf(ErrUnknownProperty, "%s on nil entity", property)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Wrapf(ErrUnknownProperty, "%s on %T", property, entity)
	}
	index, ok := a.index(v.Type())[property]
	if !ok {
		return reflect.Value{}, errors.Wrapf(ErrUnknownProperty, "%s on %s", property, v.Type())
	}
	return v.FieldByIndex(index), nil
}

func (a *ReflectAccessor) index(t reflect.Type) map[string][]int {
	if cached, ok := a.fields.Load(t); ok {
		return cached.(map[string][]int)
	}
	result := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if _, exists := result[f.Name]; !exists {
			result[f.Name] = f.Index
		}
		if tag := f.Tag.Get(Tag); tag != "" && tag != "-" {
			name, _, _ := strings.Cut(tag, ",")
			result[name] = f.Index
		}
	}
	a.fields.Store(t, result)
	return result
}

// convert adapts value to the field type: nil becomes the zero value, Assigner
// types assign themselves, pointer fields are allocated and scalars are
// coerced with cast.
func convert(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if reflect.PointerTo(target).Implements(assignerType) {
		p := reflect.New(target)
		if err := p.Interface().(Assigner).Assign(value); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	if target.Kind() == reflect.Ptr {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return reflect.Zero(target), nil
		}
		inner, err := convert(value, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Zero(target), nil
		}
		return convert(v.Elem().Interface(), target)
	}
	coerced, err := coerce(value, target.Kind())
	if err != nil {
		return reflect.Value{}, err
	}
	if coerced != nil {
		return reflect.ValueOf(coerced).Convert(target), nil
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, errors.Errorf("%s is not convertible to %s", v.Type(), target)
}

func coerce(value any, kind reflect.Kind) (any, error) {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cast.ToInt64E(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cast.ToUint64E(value)
	case reflect.Float32, reflect.Float64:
		return cast.ToFloat64E(value)
	case reflect.String:
		return cast.ToStringE(value)
	case reflect.Bool:
		return cast.ToBoolE(value)
	}
	return nil, nil
}
