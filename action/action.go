// Package action implements the built-in action dispatch an http node
// resolves against when its first line names a registered action:
// a name-keyed registry of Go functions, with tolerant JSON argument
// coercion so a model's near-miss JSON ("{name: 'a', count: 3}") still
// parses. Argument coercion is grounded on leofalp-aigo's
// internal/utils.ParseStringAs (reflect-driven primitive conversion,
// falling back to kaptinlin/jsonrepair before giving up on JSON).
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/kaptinlin/jsonrepair"
)

// Action is one built-in, invoked by name with a raw (possibly malformed)
// JSON argument string.
type Action interface {
	Name() string
	Call(ctx context.Context, argsJSON string) (string, error)
}

// Func adapts a plain function to Action.
type Func struct {
	FuncName string
	Fn       func(ctx context.Context, argsJSON string) (string, error)
}

func (f Func) Name() string { return f.FuncName }
func (f Func) Call(ctx context.Context, argsJSON string) (string, error) {
	return f.Fn(ctx, argsJSON)
}

// Registry dispatches to registered actions by name.
type Registry struct {
	actions map[string]Action
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

func (r *Registry) Register(a Action) {
	r.actions[a.Name()] = a
}

func (r *Registry) Call(ctx context.Context, name, argsJSON string) (string, error) {
	a, ok := r.actions[name]
	if !ok {
		return "", fmt.Errorf("action: no such action %q", name)
	}
	return a.Call(ctx, argsJSON)
}

// Has reports whether name is registered, letting a caller such as an http
// node's mode-(a) dispatch tell "this is an action invocation" apart from
// "this is a URL or request body" before calling Call.
func (r *Registry) Has(name string) bool {
	_, ok := r.actions[name]
	return ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.actions))
	for name := range r.actions {
		out = append(out, name)
	}
	return out
}

// ParseArgsAs decodes content into T, direct-converting primitive kinds
// and JSON-decoding everything else. A failed JSON decode is retried once
// after running content through jsonrepair, so a model's near-miss JSON
// still parses (spec.md §4.5 call nodes: "a model's tool-call arguments
// are repaired before being rejected as malformed").
func ParseArgsAs[T any](content string) (T, error) {
	var result T

	switch reflect.TypeFor[T]().Kind() {
	case reflect.String:
		reflect.ValueOf(&result).Elem().SetString(content)
		return result, nil
	case reflect.Bool:
		val, err := strconv.ParseBool(content)
		if err != nil {
			return result, fmt.Errorf("action: parse bool: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetBool(val)
		return result, nil
	case reflect.Float32, reflect.Float64:
		val, err := strconv.ParseFloat(content, 64)
		if err != nil {
			return result, fmt.Errorf("action: parse float: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetFloat(val)
		return result, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := strconv.ParseInt(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("action: parse int: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetInt(val)
		return result, nil
	default:
		if err := json.Unmarshal([]byte(content), &result); err != nil {
			repaired, repairErr := jsonrepair.JSONRepair(content)
			if repairErr != nil {
				return result, fmt.Errorf("action: unmarshal %T failed (%v) and repair failed: %w", result, err, repairErr)
			}
			if err := json.Unmarshal([]byte(repaired), &result); err != nil {
				return result, fmt.Errorf("action: unmarshal repaired %T: %w", result, err)
			}
		}
		return result, nil
	}
}
