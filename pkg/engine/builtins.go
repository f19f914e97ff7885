package engine

import (
	"fmt"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/plan"
	"github.com/chazu/strew/pkg/sampling"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites strew source before zygomys reads it:
//
//  1. Keywords: :name becomes the string literal "__kw_name", so keywords
//     need no global symbols and cannot clash with user variables.
//  2. Kebab-case identifiers: no-overlap becomes no_overlap, since zygomys
//     reads a hyphen as subtraction.
//  3. Comments: ; and ;; become //, the zygomys line comment.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i)
			result = append(result, b[i:j]...)
			i = j

		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			result = append(result, b[i:j]...)
			i = j

		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++

		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

// skipQuoted returns the index just past the double-quoted literal at i.
func skipQuoted(b []byte, i int) int {
	j := i + 1
	for j < len(b) && b[j] != '"' {
		if b[j] == '\\' && j+1 < len(b) {
			j += 2
			continue
		}
		j++
	}
	return min(j+1, len(b))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec2 struct {
	vec v2.Vec
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpCurveRef is returned by defcurve and accepted wherever a curve name is.
type sexpCurveRef struct {
	name string
}

func (c *sexpCurveRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(curve %q)", c.name)
}
func (c *sexpCurveRef) Type() *zygo.RegisteredType { return nil }

// sexpJobRef is returned by scatter and accepted by exclude.
type sexpJobRef struct {
	name string
}

func (j *sexpJobRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(job %q)", j.name)
}
func (j *sexpJobRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name of s when s is a preprocessed keyword.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A trailing
// keyword without a value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func describe(s zygo.Sexp) string {
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// toFloat64 extracts a float64 from a SexpInt or SexpFloat.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

// toInt extracts an integer. Floats with a fractional part are rejected.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %s", describe(s))
}

// toBool accepts true/false and the keywords :true/:false.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpStr:
		switch strings.TrimPrefix(v.S, kwPrefix) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %s", describe(s))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

// toKeywordString extracts a keyword name or plain string.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %s", describe(s))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec2(s zygo.Sexp) (v2.Vec, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return v2.Vec{}, fmt.Errorf("expected vec2, got %s", describe(s))
}

// toVec3 also accepts a vec2, with Z = 0.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	switch v := s.(type) {
	case *sexpVec3:
		return v.vec, nil
	case *sexpVec2:
		return v3.Vec{X: v.vec.X, Y: v.vec.Y}, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %s", describe(s))
}

// toCurveName accepts a curve reference or a plain name.
func toCurveName(s zygo.Sexp) (string, error) {
	if ref, ok := s.(*sexpCurveRef); ok {
		return ref.name, nil
	}
	name, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected curve reference or name: %w", err)
	}
	return name, nil
}

// toJobName accepts a job reference or a plain name.
func toJobName(s zygo.Sexp) (string, error) {
	if ref, ok := s.(*sexpJobRef); ok {
		return ref.name, nil
	}
	name, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected job reference or name: %w", err)
	}
	return name, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func toVec3List(s zygo.Sexp) ([]v3.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	pts := make([]v3.Vec, 0, len(items))
	for i, item := range items {
		v, err := toVec3(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		pts = append(pts, v)
	}
	return pts, nil
}

func toVec2List(s zygo.Sexp) ([]v2.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	pts := make([]v2.Vec, 0, len(items))
	for i, item := range items {
		v, err := toVec2(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		pts = append(pts, v)
	}
	return pts, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the strew DSL builtins into a zygomys
// environment. The builtins populate p during evaluation.
//
// Source code must go through preprocessSource before evaluation so that
// :keyword tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, p *plan.Plan) {

	// -----------------------------------------------------------------------
	// (vec2 1 2)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}
		return &sexpVec2{vec: v2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (defcurve "lawn" :points (list (vec3 0 0 0) ...) :closed true
	//           :smooth false :at (vec3 10 0 0) :usage :zone)
	// -----------------------------------------------------------------------
	env.AddFunction("defcurve", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("defcurve requires a name")
		}
		curveName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defcurve: name: %w", err)
		}

		c := &plan.CurveSpec{Name: curveName, Closed: true}
		if v, ok := pa.kw["points"]; ok {
			pts, err := toVec3List(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: points: %w", err)
			}
			c.Points = pts
		}
		if v, ok := pa.kw["closed"]; ok {
			if c.Closed, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: closed: %w", err)
			}
		}
		if v, ok := pa.kw["smooth"]; ok {
			if c.Smooth, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: smooth: %w", err)
			}
		}
		if v, ok := pa.kw["at"]; ok {
			if c.Offset, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: at: %w", err)
			}
		}
		if v, ok := pa.kw["usage"]; ok {
			u, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: usage: %w", err)
			}
			if c.Usage, err = sampling.ParseUsage(u); err != nil {
				return zygo.SexpNull, fmt.Errorf("defcurve: usage: %w", err)
			}
		}

		p.AddCurve(c)
		return &sexpCurveRef{name: curveName}, nil
	})

	// -----------------------------------------------------------------------
	// (scatter "trees" :curve lawn :mode :interior :density 0.5
	//          :footprint (vec3 2 2 6) :aligned false :seed 7)
	// -----------------------------------------------------------------------
	env.AddFunction("scatter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("scatter requires a name")
		}
		jobName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scatter: name: %w", err)
		}

		j := &plan.Job{Name: jobName, Params: sampling.DefaultParameters()}
		if err := applyScatterArgs(j, pa.kw); err != nil {
			return zygo.SexpNull, fmt.Errorf("scatter: %w", err)
		}
		if _, ok := pa.kw["mode"]; !ok {
			j.Params.Mode = p.DefaultMode(j.Curve)
		}

		p.AddJob(j)
		return &sexpJobRef{name: jobName}, nil
	})

	// -----------------------------------------------------------------------
	// (exclude trees :circle (vec2 5 5) :radius 2)
	// (exclude trees :polygon (list (vec2 0 0) (vec2 1 0) (vec2 0 1)))
	// -----------------------------------------------------------------------
	env.AddFunction("exclude", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("exclude requires a job")
		}
		jobName, err := toJobName(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("exclude: job: %w", err)
		}
		j := p.Job(jobName)
		if j == nil {
			return zygo.SexpNull, fmt.Errorf("exclude: no job named %q", jobName)
		}

		var e plan.Exclusion
		circle, hasCircle := pa.kw["circle"]
		poly, hasPoly := pa.kw["polygon"]
		switch {
		case hasCircle && hasPoly:
			return zygo.SexpNull, fmt.Errorf("exclude: use either :circle or :polygon")
		case hasCircle:
			e.Kind = plan.ExcludeCircle
			if e.Center, err = toVec2(circle); err != nil {
				return zygo.SexpNull, fmt.Errorf("exclude: circle: %w", err)
			}
			r, ok := pa.kw["radius"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("exclude: circle requires :radius")
			}
			if e.Radius, err = toFloat64(r); err != nil {
				return zygo.SexpNull, fmt.Errorf("exclude: radius: %w", err)
			}
		case hasPoly:
			e.Kind = plan.ExcludePolygon
			if e.Points, err = toVec2List(poly); err != nil {
				return zygo.SexpNull, fmt.Errorf("exclude: polygon: %w", err)
			}
		default:
			return zygo.SexpNull, fmt.Errorf("exclude requires :circle or :polygon")
		}

		j.Exclusions = append(j.Exclusions, e)
		return &sexpJobRef{name: jobName}, nil
	})
}

// applyScatterArgs reads the scatter keywords into j.
func applyScatterArgs(j *plan.Job, kw map[string]zygo.Sexp) error {
	var err error
	if v, ok := kw["curve"]; ok {
		if j.Curve, err = toCurveName(v); err != nil {
			return fmt.Errorf("curve: %w", err)
		}
	}
	if v, ok := kw["mode"]; ok {
		s, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if j.Params.Mode, err = sampling.ParseMode(s); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}
	if v, ok := kw["density"]; ok {
		if j.Params.Density, err = toFloat64(v); err != nil {
			return fmt.Errorf("density: %w", err)
		}
	}
	if v, ok := kw["aligned"]; ok {
		if j.Params.ForceAligned, err = toBool(v); err != nil {
			return fmt.Errorf("aligned: %w", err)
		}
	}
	if v, ok := kw["no-overlap"]; ok {
		if j.Params.ForbidOverlap, err = toBool(v); err != nil {
			return fmt.Errorf("no-overlap: %w", err)
		}
	}
	if v, ok := kw["spacing"]; ok {
		var s v2.Vec
		if f, ferr := toFloat64(v); ferr == nil {
			s = v2.Vec{X: f, Y: f}
		} else if s, err = toVec2(v); err != nil {
			return fmt.Errorf("spacing: expected number or vec2, got %s", describe(v))
		}
		j.Params.FixedSpacing = &s
	}
	if v, ok := kw["count"]; ok {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		j.Params.FixedCount = &n
	}
	if v, ok := kw["seed"]; ok {
		n, err := toInt(v)
		if err != nil || n < 0 {
			return fmt.Errorf("seed: expected a non-negative integer, got %s", describe(v))
		}
		j.Params.RandSeed = uint32(n)
	}
	if v, ok := kw["workers"]; ok {
		if j.Params.Workers, err = toInt(v); err != nil {
			return fmt.Errorf("workers: %w", err)
		}
	}
	if v, ok := kw["footprint"]; ok {
		if j.Footprint, err = toVec3(v); err != nil {
			return fmt.Errorf("footprint: %w", err)
		}
	}
	if v, ok := kw["box"]; ok {
		corners, err := toVec3List(v)
		if err != nil {
			return fmt.Errorf("box: %w", err)
		}
		if len(corners) != 2 {
			return fmt.Errorf("box: expected 2 corners, got %d", len(corners))
		}
		b := geom.BoxOf(corners...)
		j.Box = &b
	}
	return nil
}
