package rudder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DecodeModel parses a serialized rule set into a Model. The document is
// YAML; since JSON is a YAML subset, the JSON emitted by the upstream rule
// compiler decodes unchanged. The decoded model is validated by New, not
// here; DecodeModel only rejects documents it cannot interpret.
//
// Document shape:
//
//	version: "1.1"
//	parameters:
//	  Region: {type: string, required: true}
//	conditions:
//	  - {fn: isSet, argv: [{ref: Region}]}
//	  - {fn: parseArn, argv: [{ref: Bucket}], assign: bucketArn}
//	results:
//	  - endpoint:
//	      url: "https://{Region}.example.com"
//	      headers: {x-account: ["{bucketArn#accountId}"]}
//	      properties: {signingRegion: "{Region}"}
//	  - error: "Region must be set"
//	nodes:
//	  - {cond: 0, high: 1, low: -1}
//	root: 0
//
// Argument and template encoding: scalars are literals; strings are
// templates in which {Name} references a parameter or bound variable and
// {name#path} accesses an attribute; "{{" and "}}" escape literal braces.
// {ref: Name} is an explicit reference, {fn: id, argv: [...]} a nested
// call. Parameters and bound variables share one reference namespace, so
// the decoder classifies each reference against the declared parameters.
// The identifier "coalesce" builds the coalesce combinator and never
// reaches the function registry.
func DecodeModel(doc []byte) (*Model, error) {
	var raw modelDoc
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding model document")
	}

	m := Model{Version: raw.Version, Root: raw.Root}

	names := make([]string, 0, len(raw.Parameters))
	for name := range raw.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	paramSet := make(map[string]bool, len(names))
	for _, name := range names {
		paramSet[name] = true
	}
	for _, name := range names {
		p, err := decodeParam(name, raw.Parameters[name])
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", name)
		}
		m.Params = append(m.Params, p)
	}

	d := decoder{params: paramSet}
	for i, c := range raw.Conditions {
		cond, err := d.condition(c)
		if err != nil {
			return nil, errors.Wrapf(err, "condition %d", i)
		}
		m.Conditions = append(m.Conditions, cond)
	}
	for i, r := range raw.Results {
		res, err := d.result(r)
		if err != nil {
			return nil, errors.Wrapf(err, "result %d", i)
		}
		m.Results = append(m.Results, res)
	}
	for _, n := range raw.Nodes {
		m.Nodes = append(m.Nodes, Node{Cond: n.Cond, High: n.High, Low: n.Low})
	}

	return &m, nil
}

type modelDoc struct {
	Version    string              `yaml:"version"`
	Parameters map[string]paramDoc `yaml:"parameters"`
	Conditions []conditionDoc      `yaml:"conditions"`
	Results    []resultDoc         `yaml:"results"`
	Nodes      []nodeDoc           `yaml:"nodes"`
	Root       int64               `yaml:"root"`
}

type paramDoc struct {
	Type          string      `yaml:"type"`
	Required      bool        `yaml:"required"`
	Default       interface{} `yaml:"default"`
	Documentation string      `yaml:"documentation"`
}

type conditionDoc struct {
	Fn     string        `yaml:"fn"`
	Argv   []interface{} `yaml:"argv"`
	Assign string        `yaml:"assign"`
}

type resultDoc struct {
	Endpoint *endpointDoc `yaml:"endpoint"`
	Error    interface{}  `yaml:"error"`
}

type endpointDoc struct {
	URL        interface{}              `yaml:"url"`
	Headers    map[string][]interface{} `yaml:"headers"`
	Properties map[string]interface{}   `yaml:"properties"`
}

type nodeDoc struct {
	Cond uint32 `yaml:"cond"`
	High int64  `yaml:"high"`
	Low  int64  `yaml:"low"`
}

func decodeParam(name string, doc paramDoc) (Parameter, error) {
	typ, err := ParseType(doc.Type)
	if err != nil {
		return Parameter{}, err
	}
	p := Parameter{
		Name:          name,
		Typ:           typ,
		Required:      doc.Required,
		Documentation: doc.Documentation,
	}
	if doc.Default != nil {
		def, err := literalValue(doc.Default)
		if err != nil {
			return Parameter{}, errors.Wrap(err, "default")
		}
		p.Default = def
	}
	return p, nil
}

// decoder carries the declared parameter names so references can be
// classified as ParamRef or VarRef.
type decoder struct {
	params map[string]bool
}

func (d decoder) condition(doc conditionDoc) (Condition, error) {
	if doc.Fn == "" {
		return Condition{}, errors.New("missing function identifier")
	}
	argv, err := d.exprs(doc.Argv)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Fn: doc.Fn, Argv: argv, Assign: doc.Assign}, nil
}

func (d decoder) result(doc resultDoc) (ResultSpec, error) {
	switch {
	case doc.Endpoint != nil && doc.Error != nil:
		return ResultSpec{}, errors.New("result is both endpoint and error")
	case doc.Error != nil:
		msg, err := d.expr(doc.Error)
		if err != nil {
			return ResultSpec{}, err
		}
		return ResultSpec{Kind: ErrorResult, Msg: msg}, nil
	case doc.Endpoint != nil:
		return d.endpoint(doc.Endpoint)
	default:
		return ResultSpec{}, errors.New("result is neither endpoint nor error")
	}
}

func (d decoder) endpoint(doc *endpointDoc) (ResultSpec, error) {
	if doc.URL == nil {
		return ResultSpec{}, errors.New("endpoint has no url")
	}
	url, err := d.expr(doc.URL)
	if err != nil {
		return ResultSpec{}, errors.Wrap(err, "url")
	}
	r := ResultSpec{Kind: EndpointResult, URL: url}

	if len(doc.Headers) > 0 {
		r.Headers = make(map[string][]Expr, len(doc.Headers))
		for name, vals := range doc.Headers {
			exprs, err := d.exprs(vals)
			if err != nil {
				return ResultSpec{}, errors.Wrapf(err, "header %s", name)
			}
			r.Headers[name] = exprs
		}
	}
	if len(doc.Properties) > 0 {
		r.Properties = make(map[string]Expr, len(doc.Properties))
		for name, val := range doc.Properties {
			e, err := d.expr(val)
			if err != nil {
				return ResultSpec{}, errors.Wrapf(err, "property %s", name)
			}
			r.Properties[name] = e
		}
	}
	return r, nil
}

func (d decoder) exprs(raw []interface{}) ([]Expr, error) {
	out := make([]Expr, len(raw))
	for i, v := range raw {
		e, err := d.expr(v)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		out[i] = e
	}
	return out, nil
}

func (d decoder) expr(raw interface{}) (Expr, error) {
	switch x := raw.(type) {
	case string:
		return d.template(x)
	case bool:
		return Literal{Value: BoolVal(x)}, nil
	case int:
		return Literal{Value: IntVal(x)}, nil
	case map[string]interface{}:
		if ref, ok := x["ref"]; ok {
			name, isStr := ref.(string)
			if !isStr || name == "" {
				return nil, errors.Errorf("ref must be a non-empty string, got %v", ref)
			}
			return d.reference(name), nil
		}
		if fn, ok := x["fn"]; ok {
			id, isStr := fn.(string)
			if !isStr || id == "" {
				return nil, errors.Errorf("fn must be a non-empty string, got %v", fn)
			}
			argvRaw, _ := x["argv"].([]interface{})
			argv, err := d.exprs(argvRaw)
			if err != nil {
				return nil, errors.Wrap(err, id)
			}
			if id == "coalesce" {
				return Coalesce{Argv: argv}, nil
			}
			return Call{Fn: id, Argv: argv}, nil
		}
		return nil, errors.Errorf("expression object needs a ref or fn key, got keys %v", mapKeys(x))
	default:
		return nil, errors.Errorf("cannot interpret %T as an expression", raw)
	}
}

func (d decoder) reference(name string) Expr {
	base := name
	if hash := strings.IndexByte(name, '#'); hash >= 0 {
		base = name[:hash]
	}
	var ref Expr
	if d.params[base] {
		ref = ParamRef{Name: base}
	} else {
		ref = VarRef{Name: base}
	}
	if hash := strings.IndexByte(name, '#'); hash >= 0 {
		return GetAttr{From: ref, Path: name[hash+1:]}
	}
	return ref
}

// template parses a template literal into an expression. A string with no
// references decodes to a plain literal; a string that is exactly one
// reference decodes to the reference itself so non-string values pass
// through untouched.
func (d decoder) template(s string) (Expr, error) {
	var parts []Expr
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, Literal{Value: StringVal(lit.String())})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(s[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case s[i] == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil, errors.Errorf("unterminated reference in template %q", s)
			}
			name := s[i+1 : i+end]
			if name == "" {
				return nil, errors.Errorf("empty reference in template %q", s)
			}
			flush()
			parts = append(parts, d.reference(name))
			i += end + 1
		case s[i] == '}':
			return nil, errors.Errorf("unmatched '}' in template %q", s)
		default:
			lit.WriteByte(s[i])
			i++
		}
	}
	flush()

	switch len(parts) {
	case 0:
		return Literal{Value: StringVal("")}, nil
	case 1:
		return parts[0], nil
	default:
		return Template{Parts: parts}, nil
	}
}

func literalValue(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case string:
		return StringVal(x), nil
	case bool:
		return BoolVal(x), nil
	case int:
		return IntVal(x), nil
	case []interface{}:
		items := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return Absent(), fmt.Errorf("list item %d is %T, want string", i, item)
			}
			items[i] = s
		}
		return ListVal(items), nil
	default:
		return Absent(), fmt.Errorf("cannot interpret %T as a value", raw)
	}
}

func mapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
