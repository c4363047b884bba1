/*
	Package viewer is the in-process viewer model: an ordered stack of layers,
	the dimension sliders, the console namespace and dock actions.  Front ends
	render this model and never own any of its state.
*/
package viewer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/janelia-flyem/omeview/omv"
)

// ErrNoAction is returned when running an action that was never added.
var ErrNoAction = errors.New("no such action")

// ActionFunc is the callback behind a dock action.
type ActionFunc func(ctx context.Context) error

// Action is a named dock button.
type Action struct {
	Name string
	Run  ActionFunc
}

// Viewer holds the layers and state shared by every front end.
type Viewer struct {
	Dims *Dims

	mu      sync.RWMutex
	layers  []Layer
	console map[string]interface{}
	actions []Action
}

// New returns an empty viewer.
func New() *Viewer {
	return &Viewer{
		Dims:    &Dims{},
		console: make(map[string]interface{}),
	}
}

// uniqueName returns name, suffixed with " [n]" if a layer already has it.
// Caller must hold the lock.
func (v *Viewer) uniqueName(name string) string {
	taken := make(map[string]bool, len(v.layers))
	for _, l := range v.layers {
		taken[l.Meta().Name] = true
	}
	if !taken[name] {
		return name
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s [%d]", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (v *Viewer) add(l Layer) {
	v.mu.Lock()
	meta := l.Meta()
	meta.Name = v.uniqueName(meta.Name)
	v.layers = append(v.layers, l)
	v.mu.Unlock()
	omv.Debugf("Added %s layer %q\n", l.Kind(), meta.Name)
}

// AddImage appends an image layer and fits the dims to its shape.
func (v *Viewer) AddImage(l *ImageLayer) (*ImageLayer, error) {
	if len(l.Data) == 0 {
		return nil, fmt.Errorf("image layer %q has no data", l.Name)
	}
	rank := len(l.Data[0].Shape())
	for i, level := range l.Data[1:] {
		if len(level.Shape()) != rank {
			return nil, fmt.Errorf("level %d of image layer %q has rank %d, expected %d", i+1, l.Name, len(level.Shape()), rank)
		}
	}
	if l.Blending == "" {
		l.Blending = BlendTranslucent
	}
	if l.Name == "" {
		l.Name = "Image"
	}
	v.Dims.fit(l.Data[0].Shape())
	v.add(l)
	return l, nil
}

// AddPoints appends a visible points layer.
func (v *Viewer) AddPoints(name string, data [][]float64) *PointsLayer {
	if name == "" {
		name = "Points"
	}
	l := &PointsLayer{LayerMeta: LayerMeta{Name: name, Visible: true}, Data: data}
	v.add(l)
	return l
}

// AddShapes appends a visible shapes layer.  Every shape is validated first.
func (v *Viewer) AddShapes(name string, shapes []Shape) (*ShapesLayer, error) {
	for i, s := range shapes {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("shape %d: %v", i, err)
		}
	}
	if name == "" {
		name = "Shapes"
	}
	l := &ShapesLayer{LayerMeta: LayerMeta{Name: name, Visible: true}, Shapes: shapes}
	v.add(l)
	return l, nil
}

// AddLabels appends a visible labels layer.
func (v *Viewer) AddLabels(l *LabelsLayer) *LabelsLayer {
	if l.Name == "" {
		l.Name = "Labels"
	}
	l.Visible = true
	if l.Data != nil {
		v.Dims.fit(l.Data.Shape())
	}
	v.add(l)
	return l
}

// Layers returns the layers in stacking order.
func (v *Viewer) Layers() []Layer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Layer{}, v.layers...)
}

// Layer returns the layer with the given name.
func (v *Viewer) Layer(name string) (Layer, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, l := range v.layers {
		if l.Meta().Name == name {
			return l, true
		}
	}
	return nil, false
}

// ImageLayers returns the image layers in stacking order.
func (v *Viewer) ImageLayers() []*ImageLayer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var images []*ImageLayer
	for _, l := range v.layers {
		if img, ok := l.(*ImageLayer); ok {
			images = append(images, img)
		}
	}
	return images
}

// RemoveLayer drops the named layer and reports whether it existed.
func (v *Viewer) RemoveLayer(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, l := range v.layers {
		if l.Meta().Name == name {
			v.layers = append(v.layers[:i], v.layers[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateConsole merges names into the console namespace.
func (v *Viewer) UpdateConsole(names map[string]interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, val := range names {
		v.console[k] = val
	}
}

// Console returns a copy of the console namespace.
func (v *Viewer) Console() map[string]interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make(map[string]interface{}, len(v.console))
	for k, val := range v.console {
		names[k] = val
	}
	return names
}

// ConsoleNames returns the sorted names in the console namespace.
func (v *Viewer) ConsoleNames() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.console))
	for k := range v.console {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Eval resolves a console expression of the form name or name.Field.Method,
// where every step after the name is an exported field or a method taking no
// arguments.  The result is formatted with %v.
func (v *Viewer) Eval(expr string) (string, error) {
	parts := strings.Split(strings.TrimSpace(expr), ".")
	v.mu.RLock()
	root, found := v.console[parts[0]]
	v.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("name %q is not defined", parts[0])
	}
	val := reflect.ValueOf(root)
	for _, sel := range parts[1:] {
		next, err := selectMember(val, sel)
		if err != nil {
			return "", fmt.Errorf("%s: %v", expr, err)
		}
		val = next
	}
	if !val.IsValid() {
		return "<nil>", nil
	}
	return fmt.Sprintf("%v", val.Interface()), nil
}

func selectMember(val reflect.Value, sel string) (reflect.Value, error) {
	if !val.IsValid() {
		return val, fmt.Errorf("cannot select %q from nil", sel)
	}
	if m := val.MethodByName(sel); m.IsValid() {
		if m.Type().NumIn() != 0 {
			return reflect.Value{}, fmt.Errorf("method %s takes arguments", sel)
		}
		out := m.Call(nil)
		if len(out) == 0 {
			return reflect.Value{}, nil
		}
		if len(out) == 2 {
			if err, ok := out[1].Interface().(error); ok && err != nil {
				return reflect.Value{}, err
			}
		}
		return out[0], nil
	}
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return val, fmt.Errorf("cannot select %q from nil", sel)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s has no member %q", val.Type(), sel)
	}
	field, found := val.Type().FieldByName(sel)
	if !found || field.PkgPath != "" {
		return reflect.Value{}, fmt.Errorf("%s has no exported member %q", val.Type(), sel)
	}
	return val.FieldByIndex(field.Index), nil
}

// AddAction adds a dock action, replacing any existing action with that name.
func (v *Viewer) AddAction(name string, fn ActionFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, a := range v.actions {
		if a.Name == name {
			v.actions[i].Run = fn
			return
		}
	}
	v.actions = append(v.actions, Action{Name: name, Run: fn})
}

// Actions returns the dock actions in the order they were added.
func (v *Viewer) Actions() []Action {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Action{}, v.actions...)
}

// RunAction runs the named action.
func (v *Viewer) RunAction(ctx context.Context, name string) error {
	v.mu.RLock()
	var fn ActionFunc
	for _, a := range v.actions {
		if a.Name == name {
			fn = a.Run
		}
	}
	v.mu.RUnlock()
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNoAction, name)
	}
	return fn(ctx)
}
